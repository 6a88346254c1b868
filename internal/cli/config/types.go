// Package config provides configuration management for the metron CLI.
//
// Configuration merges four sources with the precedence
// flags > environment variables > config file > defaults.
package config

// Config holds all CLI configuration options.
type Config struct {
	// StatePath is the SQLite snapshot database path.
	StatePath string `koanf:"state_path"`
	// Database selects a Postgres DSN instead of the SQLite state path
	// when non-empty.
	Database string `koanf:"database"`
	// RulesFile is the YAML rule document applied by check.
	RulesFile string `koanf:"rules_file"`
	// Project is the project name stored with posted snapshots.
	Project string `koanf:"project"`
	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`
	// OutputFormat selects text or json output.
	OutputFormat string `koanf:"output"`
}
