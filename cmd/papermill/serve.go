package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"papermill/internal/analysis"
	"papermill/internal/daemon"
	"papermill/internal/extraction"
	"papermill/internal/logging"
	"papermill/internal/paper"
	"papermill/internal/services/deepseek"
	"papermill/internal/services/mineru"
	"papermill/internal/services/oss"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the papermill daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := paper.NewStore(cfg, logger)
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}

			objects := oss.NewClient(cfg.ObjectStore)
			parser := mineru.NewClient(cfg.MinerU)
			completer := deepseek.NewClient(cfg.LLM)

			extractor := extraction.NewOrchestrator(store, parser, objects, cfg, logger)
			analyzer := analysis.NewOrchestrator(store, completer, cfg, logger)

			d, err := daemon.New(cfg, daemon.Services{
				Store:      store,
				Objects:    objects,
				Extraction: extractor,
				Analysis:   analyzer,
			}, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}

			runCtx := cmd.Context()
			if err := d.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "papermill daemon listening on %s\n", d.Address())

			<-runCtx.Done()
			d.Stop()
			extractor.Wait()
			return nil
		},
	}
}
