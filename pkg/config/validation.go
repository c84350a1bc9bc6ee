package config

import (
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"
)

const redactedValue = "***"

// Validate checks the configuration with the default loader rules.
func (c *Config) Validate() error {
	return NewViperLoader("", "").Validate(c)
}

// Redacted returns a copy of the configuration with the account key masked.
// Pass the secrets Config returned by LoadWithSecrets() to also mask every string
// value that came from the secrets file.
func (c *Config) Redacted(secrets *Config) *Config {
	out := *c
	if out.Cosmos.Key != "" {
		out.Cosmos.Key = redactedValue
	}
	if secrets != nil {
		maskStrings(reflect.ValueOf(&out).Elem(), reflect.ValueOf(secrets).Elem())
	}
	return &out
}

// YAML renders the configuration as it is accepted in a config file.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}

func maskStrings(v, mask reflect.Value) {
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		switch field.Kind() {
		case reflect.Struct:
			maskStrings(field, mask.Field(i))
		case reflect.String:
			if mask.Field(i).String() != "" {
				field.SetString(redactedValue)
			}
		}
	}
}
