package cmdapi

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/go-msr/msr/migrate"
	"github.com/go-msr/msr/migrate/render"
)

var listFlags struct {
	limit int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List applied migrations from the ledger.",
	RunE:  runList,
}

func init() {
	Root.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listFlags.limit, "limit", 0, "max rows to display (0 = config display_limit)")
}

func runList(cmd *cobra.Command, _ []string) error {
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

	result, err := orch.List(context.Background(), listFlags.limit)
	if err != nil {
		return err
	}
	render.New().RenderLedger(result.Migrated)
	return nil
}
