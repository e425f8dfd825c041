// Package backup takes verified point-in-time copies of the SQLite database,
// restores them with rollback, and prunes old copies by age tier.
package backup

import (
	"time"
)

// FilePrefix and FileExt frame every backup file name. The middle part is
// the creation time in TimestampLayout.
const (
	FilePrefix      = "companion-backup-"
	FileExt         = ".db"
	TimestampLayout = "20060102-150405.000000"
)

// Config holds backup service configuration.
type Config struct {
	// DBPath is the SQLite database file to copy.
	DBPath string

	// Dir receives the backup files.
	Dir string

	// Interval between scheduled backups (default: 1 hour).
	Interval time.Duration

	Retention RetentionPolicy

	// Verify runs an integrity check on each new backup.
	Verify bool
}

// RetentionPolicy is the number of backups kept per age tier:
// hourly (< 1 day), daily (< 7 days), weekly (< 30 days) and
// monthly (< 365 days). Anything older is always removed.
type RetentionPolicy struct {
	Hourly  int `yaml:"hourly" json:"hourly"`
	Daily   int `yaml:"daily" json:"daily"`
	Weekly  int `yaml:"weekly" json:"weekly"`
	Monthly int `yaml:"monthly" json:"monthly"`
}

// DefaultRetention keeps a day of hourlies, a week of dailies, a month of
// weeklies and a year of monthlies.
func DefaultRetention() RetentionPolicy {
	return RetentionPolicy{Hourly: 24, Daily: 7, Weekly: 4, Monthly: 12}
}

// withDefaults fills unset tiers from DefaultRetention.
func (p RetentionPolicy) withDefaults() RetentionPolicy {
	d := DefaultRetention()
	if p.Hourly <= 0 {
		p.Hourly = d.Hourly
	}
	if p.Daily <= 0 {
		p.Daily = d.Daily
	}
	if p.Weekly <= 0 {
		p.Weekly = d.Weekly
	}
	if p.Monthly <= 0 {
		p.Monthly = d.Monthly
	}
	return p
}

// Info describes one backup file.
type Info struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
}

// Result is the outcome of a single backup run.
type Result struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration_ms"`
	Size     int64         `json:"size"`
	Verified bool          `json:"verified"`
	Removed  int           `json:"removed"` // Backups pruned by retention afterwards
}

// Health status values.
const (
	StatusHealthy = "healthy"
	StatusWarning = "warning"
)

// Health reports the state of the backup service.
type Health struct {
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	LastBackup    time.Time `json:"last_backup"`
	NextBackup    time.Time `json:"next_backup"`
	TotalBackups  int       `json:"total_backups"`
	Dir           string    `json:"dir"`
	DiskSpaceUsed int64     `json:"disk_space_used"`
}
