package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/shared"
)

// TokenStatus reports whether the configured backend token is usable.
func (r *Runner) TokenStatus(ctx context.Context, cmd *cli.Command) error {
	tok, err := r.config.Auth.OAuthToken()
	if err != nil {
		return err
	}

	if tok == nil {
		r.writePlain("No token configured (auth.token)\n")
		return nil
	}

	if !tok.Valid() {
		r.writePlain("✗ Token expired at %s\n\n", tok.Expiry.Format(time.RFC3339))
		r.writePlain("%s\n", models.DefaultTokenInstructions)
		return shared.ErrTokenExpired
	}

	if tok.Expiry.IsZero() {
		r.writePlain("✓ Token configured (no expiry)\n")
	} else {
		r.writePlain("✓ Token valid until %s\n", tok.Expiry.Format(time.RFC3339))
	}
	return nil
}

// TokenOpen opens the token management page.
func (r *Runner) TokenOpen(ctx context.Context, cmd *cli.Command) error {
	url := r.config.Auth.ManagementURL
	if url == "" {
		return fmt.Errorf("%w: auth.management_url is not set", shared.ErrInvalidConfig)
	}

	r.logger.Info("opening token management page", "url", url)
	if err := r.openBrowser(url); err != nil {
		r.writePlain("Open this URL in your browser:\n%s\n", url)
		return err
	}
	return nil
}
