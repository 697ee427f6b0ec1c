package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"spectra/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the job queue",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store, err := jobs.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			var statuses []jobs.Status
			for _, value := range statusFlags {
				status, ok := jobs.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				statuses = append(statuses, status)
			}

			items, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, job := range items {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					job.OriginalFilename,
					job.Profile,
					string(job.Status),
					fmt.Sprintf("%d%%", job.Progress),
					fixSummary(job),
					job.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"ID", "File", "Profile", "Status", "Progress", "Fix", "Updated"},
				rows,
				0, 4,
			))

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("job stats: %w", err)
			}
			fmt.Fprintf(out, "%d total: %d queued, %d processing, %d completed, %d failed\n",
				stats.Total, stats.Pending+stats.Queued, stats.Processing, stats.Completed, stats.Failed)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&statusFlags, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func fixSummary(job *jobs.Job) string {
	if !job.FixStatus.Requested() {
		return "-"
	}
	if job.FixType == "" {
		return strings.ToLower(string(job.FixStatus))
	}
	return fmt.Sprintf("%s (%s)", strings.ToLower(string(job.FixStatus)), job.FixType)
}
