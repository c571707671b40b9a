package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPurgeIdempotencyCommand(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge-idempotency",
		Short: "Delete stored idempotency records older than a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			s, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			cutoff := time.Now().Add(-olderThan)
			n, err := s.idem.DeleteOlderThan(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			opts.log.Info("idempotency records purged", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
			fmt.Fprintf(cmd.OutOrStdout(), "deleted=%d\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age after which records are deleted")
	return cmd
}
