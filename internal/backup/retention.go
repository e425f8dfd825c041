package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const day = 24 * time.Hour

// backupName returns the file name for a backup taken at t.
func backupName(t time.Time) string {
	return FilePrefix + t.UTC().Format(TimestampLayout) + FileExt
}

// parseBackupName extracts the timestamp from a backup file name.
func parseBackupName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileExt) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), FileExt)
	t, err := time.ParseInLocation(TimestampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// listBackups returns the backups in dir, newest first. Files that do not
// follow the naming scheme are ignored.
func listBackups(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		created, ok := parseBackupName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(dir, entry.Name()),
			Name:      entry.Name(),
			CreatedAt: created,
			Size:      info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// expired picks the backups the policy drops as of now. backups must be
// sorted newest first.
func expired(backups []Info, policy RetentionPolicy, now time.Time) []Info {
	tiers := []struct {
		maxAge time.Duration
		keep   int
	}{
		{day, policy.Hourly},
		{7 * day, policy.Daily},
		{30 * day, policy.Weekly},
		{365 * day, policy.Monthly},
	}
	kept := make([]int, len(tiers))

	var drop []Info
outer:
	for _, b := range backups {
		age := now.Sub(b.CreatedAt)
		for i, tier := range tiers {
			if age < tier.maxAge {
				if kept[i] < tier.keep {
					kept[i]++
				} else {
					drop = append(drop, b)
				}
				continue outer
			}
		}
		drop = append(drop, b)
	}
	return drop
}

// applyRetention removes expired backups from dir and reports how many were
// removed. Removal keeps going past individual failures.
func applyRetention(dir string, policy RetentionPolicy, now time.Time) (int, error) {
	backups, err := listBackups(dir)
	if err != nil {
		return 0, err
	}

	var errs []error
	removed := 0
	for _, b := range expired(backups, policy, now) {
		if err := os.Remove(b.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("remove expired backups: %w", errors.Join(errs...))
	}
	return removed, nil
}

func diskUsage(backups []Info) int64 {
	var total int64
	for _, b := range backups {
		total += b.Size
	}
	return total
}
