package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can write "250ms" or "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

// FileConfig is the YAML shape accepted by LoadFile. Pointer fields
// distinguish "absent" from zero so a file only overrides what it names.
type FileConfig struct {
	URL                  string            `yaml:"url"`
	HTTPBaseURL          string            `yaml:"http_base_url"`
	ActionChannel        string            `yaml:"action_channel"`
	RequestTimeout       *Duration         `yaml:"request_timeout"`
	ConnectTimeout       *Duration         `yaml:"connect_timeout"`
	Reconnect            *bool             `yaml:"reconnect"`
	MaxReconnectAttempts *int              `yaml:"max_reconnect_attempts"`
	ReconnectDelay       *Duration         `yaml:"reconnect_delay"`
	MaxReconnectDelay    *Duration         `yaml:"max_reconnect_delay"`
	Backoff              string            `yaml:"backoff"`
	HTTPRetries          *int              `yaml:"http_retries"`
	HTTPTimeout          *Duration         `yaml:"http_timeout"`
	Headers              map[string]string `yaml:"headers"`
}

// LoadFile reads and decodes a YAML config file. Unknown keys are rejected.
func LoadFile(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc FileConfig

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &fc, nil
}

// Apply copies the file's set fields onto o, leaving the rest untouched.
// Callers layer it between Default() and programmatic options.
func (fc *FileConfig) Apply(o *Options) {
	if fc.URL != "" {
		o.URL = fc.URL
	}

	if fc.HTTPBaseURL != "" {
		o.HTTPBaseURL = fc.HTTPBaseURL
	}

	if fc.ActionChannel != "" {
		o.ActionChannel = fc.ActionChannel
	}

	if fc.RequestTimeout != nil {
		o.RequestTimeout = time.Duration(*fc.RequestTimeout)
	}

	if fc.ConnectTimeout != nil {
		o.ConnectTimeout = time.Duration(*fc.ConnectTimeout)
	}

	if fc.Reconnect != nil {
		o.Reconnect = *fc.Reconnect
	}

	if fc.MaxReconnectAttempts != nil {
		o.MaxReconnectAttempts = *fc.MaxReconnectAttempts
	}

	if fc.ReconnectDelay != nil {
		o.ReconnectDelay = time.Duration(*fc.ReconnectDelay)
	}

	if fc.MaxReconnectDelay != nil {
		o.MaxReconnectDelay = time.Duration(*fc.MaxReconnectDelay)
	}

	if fc.Backoff != "" {
		o.Backoff = BackoffMode(fc.Backoff)
	}

	if fc.HTTPRetries != nil {
		o.HTTPRetries = *fc.HTTPRetries
	}

	if fc.HTTPTimeout != nil {
		o.HTTPTimeout = time.Duration(*fc.HTTPTimeout)
	}

	if len(fc.Headers) > 0 {
		if o.Headers == nil {
			o.Headers = make(map[string]string, len(fc.Headers))
		}

		for k, v := range fc.Headers {
			o.Headers[k] = v
		}
	}
}
