package logpipe

import (
	"fmt"
	"strings"
)

// ApplyOverride applies string key-value overrides to the logger's current configuration.
// Each override should be in the format "key=value", keyed by the toml names.
// The configuration is cloned before modification; nothing is applied if any
// override fails.
//
// Example:
//
//	logger := logpipe.NewLogger()
//	err := logger.ApplyOverride(
//	    "directory=/var/log/app",
//	    "level=debug",
//	    "format=json",
//	)
func (l *Logger) ApplyOverride(overrides ...string) error {
	cfg := l.GetConfig()
	if err := cfg.Override(overrides...); err != nil {
		return err
	}
	return l.ApplyConfig(cfg)
}

// Override applies "key=value" strings to c in place. Every override is
// attempted and the failures are returned together; c is not validated.
func (c *Config) Override(overrides ...string) error {
	var errs []error
	for _, override := range overrides {
		key, value, err := parseKeyValue(override)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := applyConfigField(c, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return combineConfigErrors(errs)
}

// combineConfigErrors combines multiple configuration errors into a single error.
func combineConfigErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	var sb strings.Builder
	sb.WriteString("log: multiple configuration errors:")
	for i, err := range errs {
		errMsg := strings.TrimPrefix(err.Error(), "log: ")
		sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, errMsg))
	}
	return fmt.Errorf("%s", sb.String())
}

// applyConfigField applies a single key-value override to a Config.
func applyConfigField(cfg *Config, key, value string) error {
	if !isConfigKey(key) {
		return fmtErrorf("unknown configuration key '%s'", key)
	}
	if key == "level" {
		if _, err := ParseLevel(value); err != nil {
			return fmtErrorf("invalid level value '%s': %w", value, err)
		}
	}
	if err := decodeConfig(cfg, map[string]any{key: value}); err != nil {
		return fmtErrorf("invalid value for %s '%s': %w", key, value, err)
	}
	return nil
}

func isConfigKey(key string) bool {
	for _, k := range configKeys() {
		if k == key {
			return true
		}
	}
	return false
}
