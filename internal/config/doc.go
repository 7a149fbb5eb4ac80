// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// letting credentials live in the process environment rather than in the file on disk.
package config
