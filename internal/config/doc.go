// Package config loads the gateway's YAML configuration, expanding ${VAR}
// environment references and parsing duration strings, and applies defaults
// and validation so the rest of the process can trust the values.
package config
