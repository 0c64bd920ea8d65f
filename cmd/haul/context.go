package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"haul/internal/accounts"
	"haul/internal/config"
	"haul/internal/database"
	"haul/internal/filestore"
	"haul/internal/kvstore"
	"haul/internal/logging"
)

const shutdownTimeout = 30 * time.Second

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	outputs := []string{filepath.Join(cfg.Paths.LogDir, "haul.log")}
	if c.verbose != nil && *c.verbose {
		outputs = append(outputs, "stderr")
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
}

// withBackend opens the backend with every extension registered, runs fn,
// and shuts the backend down.
func (c *commandContext) withBackend(cmd *cobra.Command, fn func(context.Context, *database.Backend) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger(cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	backend, err := database.New(cfg, database.WithLogger(logger))
	if err != nil {
		return err
	}
	for _, ext := range []database.Extension{filestore.Extension{}, kvstore.Extension{}, accounts.Extension{}} {
		if err := backend.RegisterExtension(ext); err != nil {
			return fmt.Errorf("register %s: %w", ext.Name(), err)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := backend.Setup(ctx); err != nil {
		_ = backend.Shutdown(context.Background())
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := backend.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
			err = fmt.Errorf("close database: %w", shutdownErr)
		}
	}()

	return fn(ctx, backend)
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
