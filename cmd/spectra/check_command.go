package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spectra/internal/deps"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the configured engine toolchain is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			requirements := deps.ForConfig(cfg)
			if len(requirements) == 0 {
				fmt.Fprintln(out, "Remote mode: engines run on worker hosts, nothing to check locally")
				return nil
			}

			statuses := deps.Check(requirements)
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				rows = append(rows, []string{
					status.Name,
					status.Command,
					availability(status),
					status.Detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Dependency", "Target", "Status", "Detail"},
				rows,
			))

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependencies unavailable", len(missing))
			}
			fmt.Fprintln(out, "All required dependencies available")
			return nil
		},
	}
}

func availability(status deps.Status) string {
	switch {
	case status.Available:
		return "ok"
	case status.Optional:
		return "missing (optional)"
	default:
		return "missing"
	}
}
