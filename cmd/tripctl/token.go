package main

import (
	"fmt"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/infrastructure/config"
	customMW "github.com/cassiomorais/tripcheckout/internal/middleware"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		actor string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.JWTExpiry
			}
			token, err := customMW.IssueToken(cfg.Auth.JWTSecret, actor, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "actor id to put in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.jwt_expiry)")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}
