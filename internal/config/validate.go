package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are checked per
// command through RequireGeneration and RequireDocuments.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateBudget(); err != nil {
		return err
	}
	if err := c.validateDocuments(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.ContentDir == "" {
		return errors.New("paths.content_dir must be set")
	}
	if c.Paths.PublicDir == "" {
		return errors.New("paths.public_dir must be set")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	switch c.Generation.Provider {
	case ProviderOpenRouter:
		if c.Generation.BaseURL == "" {
			return errors.New("generation.base_url must be set for the openrouter provider")
		}
	case ProviderAnthropic:
	default:
		return fmt.Errorf("generation.provider must be %q or %q, got %q", ProviderOpenRouter, ProviderAnthropic, c.Generation.Provider)
	}
	if c.Generation.MaxTokens < 256 {
		return errors.New("generation.max_tokens must be at least 256")
	}
	return nil
}

func (c *Config) validateBudget() error {
	if c.Budget.DailyUSD <= 0 {
		return errors.New("budget.daily_usd must be positive")
	}
	if c.Budget.InputPricePerMillion < 0 || c.Budget.OutputPricePerMillion < 0 {
		return errors.New("budget prices must not be negative")
	}
	if c.Budget.WarnRatio <= 0 || c.Budget.WarnRatio > 1 {
		return errors.New("budget.warn_ratio must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateDocuments() error {
	switch c.Documents.Backend {
	case DocumentsGoogle, DocumentsLocal:
		return nil
	default:
		return fmt.Errorf("documents.backend must be %q or %q, got %q", DocumentsGoogle, DocumentsLocal, c.Documents.Backend)
	}
}

func (c *Config) validateImages() error {
	if c.Images.S3Bucket != "" && c.Images.S3PublicBaseURL == "" {
		return errors.New("images.s3_public_base_url must be set when images.s3_bucket is configured")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
