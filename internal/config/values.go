package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// ListValues returns all config values as a flat dot-keyed map. When mask
// is true, secret values are masked for display.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	nested, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(nested)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads the config file and returns the value at the given
// dot-separated key.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	nested, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(nested)
	val, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return val, nil
}

// SetValue updates a single dot-separated key in the config file. Values
// are coerced: bools and numbers parse to their native types, everything
// else stays a string.
func SetValue(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read config: %w", err)
		}
		data = []byte("{}")
	}

	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	flat := Flatten(nested)
	flat[key] = coerce(value)
	nested = Unflatten(flat)

	// Round-trip through Config so unknown keys are rejected.
	merged, err := json.Marshal(nested)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(merged, &cfg); err != nil {
		return fmt.Errorf("invalid config value for %s: %w", key, err)
	}

	return Save(path, &cfg)
}

func coerce(value string) any {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return nested, nil
}
