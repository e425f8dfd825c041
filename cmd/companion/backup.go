package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/companion/internal/app"
	"github.com/scrypster/companion/internal/backup"
)

const mb = 1024 * 1024

func (c *cli) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up and restore the SQLite database",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create a verified backup now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := c.backupService()
				if err != nil {
					return err
				}
				result, err := svc.BackupNow(cmd.Context())
				if err != nil {
					return err
				}
				c.printf("Backup completed successfully:\n")
				c.printf("  Path:     %s\n", result.Path)
				c.printf("  Size:     %.2f MB\n", float64(result.Size)/mb)
				c.printf("  Duration: %v\n", result.Duration)
				c.printf("  Verified: %v\n", result.Verified)
				if result.Removed > 0 {
					c.printf("  Pruned:   %d old backup(s)\n", result.Removed)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List backups, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := c.backupService()
				if err != nil {
					return err
				}
				backups, err := svc.List()
				if err != nil {
					return err
				}
				if len(backups) == 0 {
					c.printf("No backups found\n")
					return nil
				}
				c.printf("Found %d backup(s):\n\n", len(backups))
				for i, b := range backups {
					c.printf("%d. %s\n", i+1, b.Path)
					c.printf("   Size: %.2f MB\n", float64(b.Size)/mb)
					c.printf("   Created: %s (%s ago)\n\n", b.CreatedAt.Local().Format(time.DateTime), time.Since(b.CreatedAt).Round(time.Second))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "restore <backup-file>",
			Short: "Replace the database with a backup",
			Long: `Replace the database with a backup. The backup is verified first and the
current database is kept as a pre-restore copy. Stop the web server before
restoring.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := c.backupService()
				if err != nil {
					return err
				}
				c.printf("Restoring database from backup: %s\n", args[0])
				if err := svc.Restore(cmd.Context(), args[0]); err != nil {
					return err
				}
				c.printf("Database restored successfully\n")
				return nil
			},
		},
		&cobra.Command{
			Use:   "health",
			Short: "Show backup status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := c.backupService()
				if err != nil {
					return err
				}
				health, err := svc.HealthCheck()
				if err != nil {
					return err
				}
				c.printHealth(health)
				return nil
			},
		},
	)
	return cmd
}

// backupService works on the database file directly, without opening the
// store, so restore can replace it.
func (c *cli) backupService() (*backup.Service, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	return app.NewBackupService(cfg, logger)
}

func (c *cli) printHealth(h *backup.Health) {
	c.printf("Status: %s\n", h.Status)
	if h.Message != "" {
		c.printf("Message: %s\n", h.Message)
	}
	c.printf("Total Backups: %d\n", h.TotalBackups)
	c.printf("Disk Space Used: %.2f MB\n", float64(h.DiskSpaceUsed)/mb)
	c.printf("Backup Directory: %s\n", h.Dir)
	if h.LastBackup.IsZero() {
		c.printf("Last Backup: Never\n")
	} else {
		c.printf("Last Backup: %s (%s ago)\n", h.LastBackup.Local().Format(time.DateTime), time.Since(h.LastBackup).Round(time.Second))
	}
}
