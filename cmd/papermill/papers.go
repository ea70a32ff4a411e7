package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"papermill/internal/api"
	"papermill/internal/logging"
	"papermill/internal/paper"
)

func newPapersCommand(ctx *commandContext) *cobra.Command {
	papersCmd := &cobra.Command{
		Use:   "papers",
		Short: "Inspect paper records",
	}
	papersCmd.AddCommand(newPapersListCommand(ctx))
	papersCmd.AddCommand(newPapersStatsCommand(ctx))
	return papersCmd
}

func newPapersListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List paper records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if statusFilter != "" {
				if _, ok := paper.ParseStatus(statusFilter); !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
			}

			store, err := paper.NewStore(cfg, logging.NewNop())
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			svc := api.NewPaperService(store)
			resp, err := svc.List(cmd.Context(), statusFilter, offset, limit)
			if err != nil {
				return err
			}

			if len(resp.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No papers found.")
				return nil
			}

			rows := make([][]string, 0, len(resp.Items))
			for _, item := range resp.Items {
				rows = append(rows, []string{
					item.Key,
					item.Filename,
					item.Status,
					formatTime(item.UploadedAt),
					item.Error,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Key", "Filename", "Status", "Uploaded", "Error"}, rows))
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d papers\n", len(resp.Items), resp.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip the first N records")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most N records (0 for all)")
	return cmd
}

func newPapersStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := paper.NewStore(cfg, logging.NewNop())
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			svc := api.NewPaperService(store)
			resp, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(resp.Counts))
			for _, status := range paper.AllStatuses() {
				rows = append(rows, []string{string(status), strconv.Itoa(resp.Counts[string(status)])})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows))
			fmt.Fprintf(cmd.OutOrStdout(), "%d papers total\n", resp.Total)
			return nil
		},
	}
}

func formatTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.Local().Format("2006-01-02 15:04")
}
