package main

import (
	"fmt"
	"time"

	"github.com/randgate/backend/internal/config"
	"github.com/randgate/backend/internal/domain"
	"github.com/randgate/backend/internal/service"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API token",
		Long: `Sign a JWT with auth.jwt_secret carrying the admin role.
Pass it as "Authorization: Bearer <token>" to /api/admin/*.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadTooling()
			if err != nil {
				return err
			}
			issued, err := service.NewAuthService(cfg.Auth.JWTSecret).IssueToken(subject, domain.RoleAdmin, ttl)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, issued.Token)
			fmt.Fprintf(out, "# expires %s\n", issued.ExpiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
