package cmdapi

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/go-msr/msr/migrate"
	"github.com/go-msr/msr/migrate/render"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate pending/applied migrations without executing anything.",
	RunE:  runValidate,
}

func init() {
	Root.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
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

	result := orch.Validate(context.Background())
	render.New().RenderResult(result)
	if !result.Success {
		return result.Errors[len(result.Errors)-1]
	}
	return nil
}
