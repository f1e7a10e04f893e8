// Package config loads, normalizes, and validates the content pipeline's
// TOML configuration and the YAML source registry.
//
// Load resolves the config file, applies defaults and environment fallbacks
// (including values from a local .env file), expands paths, and validates
// each section. Credentials are only demanded by the commands that need
// them via RequireGeneration and RequireDocuments.
package config
