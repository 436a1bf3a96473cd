package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (INSTRUMENTAL_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("api-key", os.Getenv("INSTRUMENTAL_API_KEY"), &cfg.APIKey)
	s.setString("address", os.Getenv("INSTRUMENTAL_ADDRESS"), &cfg.Address)
	s.setString("log-level", os.Getenv("INSTRUMENTAL_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", os.Getenv("INSTRUMENTAL_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setIntFromString("queue-size", os.Getenv("INSTRUMENTAL_QUEUE_SIZE"), &cfg.QueueSize); err != nil {
		return err
	}
	if err := s.setDuration("flush-timeout", os.Getenv("INSTRUMENTAL_FLUSH_TIMEOUT"), &cfg.FlushTimeout); err != nil {
		return err
	}

	if v := os.Getenv("INSTRUMENTAL_ENABLED"); v != "" {
		enabled := parseBool(v)
		s.setDisabled("disabled", &enabled, &cfg.Disabled)
	}

	return nil
}
