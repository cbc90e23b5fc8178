package cmdapi

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/go-msr/msr/migrate"
	"github.com/go-msr/msr/migrate/render"
)

var migrateFlags struct {
	target int64
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations up to (optionally) a target timestamp.",
	RunE:  runMigrate,
}

func init() {
	Root.AddCommand(migrateCmd)
	migrateCmd.Flags().Int64Var(&migrateFlags.target, "target", 0, "stop after applying this timestamp (0 = apply everything pending)")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
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

	var target *int64
	if migrateFlags.target != 0 {
		target = &migrateFlags.target
	}
	result := orch.MigrateUp(context.Background(), target)
	render.New().RenderResult(result)
	if !result.Success {
		return result.Errors[len(result.Errors)-1]
	}
	return nil
}
