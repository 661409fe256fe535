// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A handful of well-known variables (ALOR_REFRESH_TOKEN, ALOR_EXCHANGE, ...)
// override file values directly, so the CLI also runs with no file at all.
// An optional .env file is loaded into the environment first.
package config
