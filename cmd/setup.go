package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/evalwatch/internal/shared"
)

// Setup creates the configuration file from the embedded template, or validates it when it exists.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Wrote %s\n", configPath)
	} else if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}

	r.writePlainHeader("Configuration")
	r.writePlain("Backend:        %s\n", config.Backend.BaseURL)
	r.writePlain("WebSocket:      %s\n", config.Backend.WSURL())
	r.writePlain("Execute:        %s\n", config.Backend.ExecuteURL(shared.RunIDPlaceholder))
	r.writePlain("Progress topic: %s\n", config.Backend.Topic(shared.RunIDPlaceholder))
	r.writePlain("Server:         %s\n", config.Server.Addr())

	tok, err := config.Auth.OAuthToken()
	switch {
	case err != nil:
		return err
	case tok == nil:
		r.writePlain("Token:          not configured\n")
	case !tok.Valid():
		r.writePlain("Token:          expired (%s)\n", config.Auth.TokenExpiry)
	default:
		r.writePlain("Token:          configured\n")
	}

	r.writePlainln("Next steps:")
	r.writePlain("1. Run 'evalwatch serve' to start the progress server\n")
	r.writePlain("2. Run 'evalwatch run exec <runId>' to execute a run and follow it\n")
	return nil
}
