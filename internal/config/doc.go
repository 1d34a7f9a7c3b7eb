// Package config loads the toolforge CLI configuration from multiple sources
// (YAML files, environment variables, CLI flags) with precedence: CLI flags >
// YAML config > Environment variables > Defaults.
package config
