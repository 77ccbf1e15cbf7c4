package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sefazor/guestdrop-backend/internal/service"
)

func newJobCmd() *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Background job commands",
	}

	var params service.JobParams
	runCmd := &cobra.Command{
		Use:       "run <" + strings.Join(service.JobNames, "|") + ">",
		Short:     "Run one background job now and print its summary",
		Args:      cobra.ExactArgs(1),
		ValidArgs: service.JobNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer c.close()

			result, err := c.jobs.Run(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	runCmd.Flags().IntVar(&params.Limit, "limit", 0, "items per run (defaults to JOB_BATCH_SIZE)")
	runCmd.Flags().StringVar(&params.EventID, "event-id", "", "restrict a facet rebuild to one event")

	jobCmd.AddCommand(runCmd)
	return jobCmd
}
