package cmdapi

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-msr/msr/migrate"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect or manipulate the migration lock directly.",
}

var lockReleaseFlags struct {
	force bool
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Release the migration lock.",
	RunE:  runLockRelease,
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current lock status.",
	RunE:  runLockStatus,
}

func init() {
	Root.AddCommand(lockCmd)
	lockCmd.AddCommand(lockReleaseCmd)
	lockCmd.AddCommand(lockStatusCmd)
	lockReleaseCmd.Flags().BoolVar(&lockReleaseFlags.force, "force", false, "force-release the lock regardless of current owner")
	cobra.CheckErr(lockReleaseCmd.MarkFlagRequired("force"))
}

func runLockRelease(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	collab, cleanup, err := wire(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	svc, err := migrate.NewLockService(lockDriver(collab.store), cfg.Locking)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := svc.Init(ctx); err != nil {
		return err
	}
	if !lockReleaseFlags.force {
		return fmt.Errorf("msr: lock release requires --force")
	}
	if err := svc.ForceRelease(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "lock released")
	return nil
}

func runLockStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	collab, cleanup, err := wire(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	svc, err := migrate.NewLockService(lockDriver(collab.store), cfg.Locking)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := svc.Init(ctx); err != nil {
		return err
	}
	status, err := svc.Status(ctx)
	if err != nil {
		return err
	}
	if status.Held {
		fmt.Fprintf(cmd.OutOrStdout(), "held by %s since %d, expires %d\n", status.OwnerID, status.AcquiredAt, status.ExpiresAt)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "not held")
	}
	return nil
}
