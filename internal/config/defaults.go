// Package config holds shared configuration defaults for metron.
package config

// Default configuration values.
const (
	// DefaultStateFile is the default SQLite snapshot database path.
	DefaultStateFile = ".metron/metrics.db"
	// DefaultRulesFile is the default rule document path.
	DefaultRulesFile = "rules.yaml"
	// DefaultOutput is the default output format.
	DefaultOutput = "text"
)
