package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tripwell/crew-planner-api/internal/app/travelers"
	platformclock "github.com/tripwell/crew-planner-api/internal/platform/clock"
)

func newProvisionTravelerCommand(opts *rootOptions) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "provision-traveler --email <email> [--name <display name>]",
		Short: "Create a traveler ahead of first sign-in so they can be added to crews by email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			svc := travelers.NewService(s.travelers, platformclock.NewSystemClock(), opts.cfg.TenantID, opts.log)
			t, err := svc.Provision(cmd.Context(), email, name)
			if err != nil {
				return err
			}
			opts.log.Info("traveler provisioned", zap.String("traveler_id", string(t.ID)))
			fmt.Fprintf(cmd.OutOrStdout(), "id=%s email=%s\n", t.ID, *t.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "traveler email address")
	cmd.Flags().StringVar(&name, "name", "", "display name, split into first and last")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
