package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/leaktrack-backend/internal/auth"
)

// setupTokenCommand mints bearer tokens signed with AUTH_JWT_SECRET, for
// local testing against a server that verifies tokens.
func setupTokenCommand(a *app) *cobra.Command {
	var (
		name string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Auth.DevMode() {
				return errors.New("AUTH_JWT_SECRET is not set; the server accepts X-User-ID instead")
			}
			tok, err := auth.NewVerifier(a.cfg.Auth.JWTSecret, a.cfg.Auth.JWTIssuer).Sign(args[0], name, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
