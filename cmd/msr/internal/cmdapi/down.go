package cmdapi

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-msr/msr/migrate"
	"github.com/go-msr/msr/migrate/render"
)

var downFlags struct {
	target int64
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Reverse every applied migration newer than --target.",
	RunE:  runDown,
}

func init() {
	Root.AddCommand(downCmd)
	downCmd.Flags().Int64Var(&downFlags.target, "target", 0, "reverse everything newer than this timestamp")
	cobra.CheckErr(downCmd.MarkFlagRequired("target"))
}

func runDown(cmd *cobra.Command, _ []string) error {
	if downFlags.target == 0 {
		return fmt.Errorf("msr: --target is required for down")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	collab, cleanup, err := wire(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	orch := migrate.NewOrchestrator(collab.db, collab.loaders, collab.store, lockDriver(collab.store), collab.backup, cfg,
		migrate.WithOrchestratorLogger(collab.logger))

	result := orch.DownTo(context.Background(), downFlags.target)
	render.New().RenderResult(result)
	if !result.Success {
		return result.Errors[len(result.Errors)-1]
	}
	return nil
}
