package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tripwell/crew-planner-api/internal/app/crews"
	"github.com/tripwell/crew-planner-api/internal/domain"
	platformclock "github.com/tripwell/crew-planner-api/internal/platform/clock"
	crewrepoport "github.com/tripwell/crew-planner-api/internal/ports/out/crewrepo"
)

func newBackfillCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-join-codes",
		Short: "Register every legacy crew join code in the join code registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			svc := crews.NewService(s.crews, s.travelers, s.trips, platformclock.NewSystemClock(), crews.Options{
				BaseURL: opts.BaseURL,
				Logger:  opts.log,
			})
			res, err := svc.BackfillLegacyCodes(cmd.Context())
			if err != nil {
				return fmt.Errorf("backfill after %d crews: %w", res.Scanned, err)
			}
			opts.log.Info("legacy join codes backfilled", zap.Int("scanned", res.Scanned), zap.Int("inserted", res.Inserted))
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d inserted=%d\n", res.Scanned, res.Inserted)
			return nil
		},
	}
}

func newInviteURLCommand(opts *rootOptions) *cobra.Command {
	var legacy bool
	cmd := &cobra.Command{
		Use:   "invite-url <crew-id-or-handle>",
		Short: "Print the shareable invite link for a crew",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			c, err := s.crews.GetByID(ctx, domain.CrewID(args[0]))
			if errors.Is(err, crewrepoport.ErrNotFound) {
				c, err = s.crews.GetByHandle(ctx, args[0])
			}
			if errors.Is(err, crewrepoport.ErrNotFound) {
				return fmt.Errorf("no crew with id or handle %q", args[0])
			}
			if err != nil {
				return err
			}

			codes, err := s.crews.ListJoinCodes(ctx, c.ID)
			if err != nil {
				return err
			}
			code := firstUsableCode(codes, time.Now())

			var url string
			if legacy {
				if code == "" {
					return fmt.Errorf("crew %s has no usable join code", c.ID)
				}
				url = domain.LegacyInviteURL(opts.BaseURL, code)
			} else {
				url = domain.InviteURL(opts.BaseURL, c.Handle, code)
			}
			if url == "" {
				return fmt.Errorf("crew %s has neither a handle nor a usable join code", c.ID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy", false, "print the /join?code= form")
	return cmd
}

func firstUsableCode(codes []crewrepoport.JoinCode, now time.Time) string {
	for _, jc := range codes {
		d := domain.JoinCode{Code: jc.Code, CrewID: jc.CrewID, IsActive: jc.IsActive, ExpiresAt: jc.ExpiresAt, CreatedAt: jc.CreatedAt, DeactivatedAt: jc.DeactivatedAt}
		if d.Usable(now) {
			return jc.Code
		}
	}
	return ""
}
