package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "imrich/internal/jwt_token"
	id "imrich/pkg/domain"
)

// tokenCommand mints a bearer token with the configured signing key. It
// stands in for the external auth service during local development.
func tokenCommand() *cobra.Command {
	var (
		accountID string
		email     string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := commonRun()
			if err != nil {
				return err
			}
			if _, err := id.ParseAccountID(accountID); err != nil {
				return errors.New("--account is required")
			}
			addr, err := id.ParseEmail(email)
			if err != nil {
				return fmt.Errorf("--email: %w", err)
			}
			svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
			token, err := svc.GenerateAccessToken(accountID, addr.String(), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id placed in the user_id claim")
	cmd.Flags().StringVar(&email, "email", "", "owner email placed in the email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
