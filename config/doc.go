// Package config loads healthcast settings from YAML, a .env file and
// HEALTHCAST_* environment variables.
package config
