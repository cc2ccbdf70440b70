// Package config defines the application configuration structure and its
// loading logic. Configuration comes from defaults, an optional YAML file,
// and AGV_-prefixed environment variables, and is validated before use.
package config
