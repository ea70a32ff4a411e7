package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"papermill/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get("http://" + cfg.Paths.APIBind + "/api/status")
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon: not running (%v)\n", err)
				return nil
			}
			defer resp.Body.Close()

			var status api.DaemonStatus
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon:      running\n")
			fmt.Fprintf(out, "Address:     %s\n", status.Address)
			fmt.Fprintf(out, "Record file: %s\n", status.RecordFile)
			fmt.Fprintf(out, "Lock file:   %s\n", status.LockFile)
			return nil
		},
	}
}
