package main

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"contentpipe/internal/config"
	"contentpipe/internal/docs"
	"contentpipe/internal/notifications"
	"contentpipe/internal/publish"
	"contentpipe/internal/services/llm"
)

// commandContext carries state shared by every subcommand of one process.
// The factory fields are the seams tests replace.
type commandContext struct {
	configPath string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	generators llm.Factory
	documents  func(ctx context.Context, cfg *config.Config) (docs.Service, error)
	git        func(cfg *config.Config) publish.Committer
	notifier   func(cfg *config.Config) notifications.Service
	logOutput  io.Writer
	clock      func() time.Time
}

func newCommandContext() *commandContext {
	return &commandContext{
		generators: llm.NewFromConfig,
		documents:  docs.New,
		git: func(cfg *config.Config) publish.Committer {
			return publish.NewGit(cfg.GitBinary(), cfg.RepoDir(), nil)
		},
		notifier: notifications.NewService,
		clock:    time.Now,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
