package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mentorboxai/api/internal/auth"
	"github.com/mentorboxai/api/internal/config"
)

func tokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if !cmd.Flags().Changed("ttl") && cfg.JWT.Expiration > 0 {
				ttl = time.Duration(cfg.JWT.Expiration) * time.Hour
			}

			token, err := auth.IssueToken(userID, email, cfg.JWT.Secret, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "local-dev", "User ID claim")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime, defaults to jwt.expiration (0 for no expiry)")

	return cmd
}
