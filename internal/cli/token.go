package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"memodesk-backend/internal/middleware"
)

// newTokenCmd mints a development token signed with the server's JWT secret.
func newTokenCmd() *cobra.Command {
	var (
		secret string
		user   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("a signing secret is required (--secret or JWT_SECRET)")
			}

			userID := uuid.New()
			if user != "" {
				var err error
				if userID, err = uuid.Parse(user); err != nil {
					return fmt.Errorf("invalid user id %q: %w", user, err)
				}
			}

			token, err := middleware.NewJWTAuth(secret).GenerateAccessToken(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT signing secret")
	cmd.Flags().StringVar(&user, "user", "", "user id (default: random)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
