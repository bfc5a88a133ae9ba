package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cassiomorais/tripcheckout/internal/bootstrap"
	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/spf13/cobra"
)

func intentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intent",
		Short: "Inspect or discard an actor's pending trip intent",
	}

	var actor string
	cmd.PersistentFlags().StringVar(&actor, "actor", "", "actor id")
	_ = cmd.MarkPersistentFlagRequired("actor")

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the best available intent across all tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				in, err := app.Tiers().LoadBestAvailable(cmd.Context(), actor)
				if errors.Is(err, domainErrors.ErrIntentNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "No pending intent for %s\n", actor)
					return nil
				}
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"tier": in.Tier, "intent": in})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete the actor's intent from every tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				if err := app.Tiers().Purge(cmd.Context(), actor); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged intent for %s\n", actor)
				return nil
			})
		},
	})

	return cmd
}

func withApp(ctx context.Context, fn func(app *bootstrap.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := bootstrap.New(ctx, "tripctl", "tripctl")
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
