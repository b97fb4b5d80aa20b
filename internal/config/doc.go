// Package config loads reservesync settings from a YAML file and
// RESERVESYNC_* environment variables.
//
// Precedence, lowest first: built-in defaults, the YAML file, the
// environment. Command-line flags are applied by the cmd package on top.
package config
