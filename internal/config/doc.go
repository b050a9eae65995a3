// Package config defines the device settings and provides helpers to load,
// validate and save them in YAML format.
//
// Timing options are Go durations ("5s", "100ms"). Defaults are applied by
// Validate so a minimal file only needs the alert recipients and SMTP
// server. API keys and the SMTP password are never stored in YAML; they are
// read from the environment, optionally seeded from a dotenv file.
package config
