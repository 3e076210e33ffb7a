// Package config loads the inquiry service configuration from a YAML file,
// an optional .env file and environment variables, applies defaults and
// validates the result.
package config
