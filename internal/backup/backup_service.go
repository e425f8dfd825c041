package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrRunning is returned by operations that need the scheduler stopped.
var ErrRunning = errors.New("backup service is running")

// Service takes scheduled and on-demand backups.
type Service struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	onBackup func(error)

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	lastBackup time.Time
	nextBackup time.Time
}

// NewService validates cfg, fills defaults and creates the backup directory.
func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.Dir == "" {
		return nil, errors.New("backup directory is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	cfg.Retention = cfg.Retention.withDefaults()

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:    cfg,
		logger: logger.Named("backup"),
		now:    time.Now,
	}, nil
}

// SetObserver registers fn to be called after every BackupNow.
func (s *Service) SetObserver(fn func(error)) {
	s.mu.Lock()
	s.onBackup = fn
	s.mu.Unlock()
}

// Dir returns the backup directory.
func (s *Service) Dir() string { return s.cfg.Dir }

// Start runs the scheduler until ctx is cancelled or Stop is called. It
// blocks; run it in a goroutine.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("backup service is already running")
	}
	s.running = true
	stop := make(chan struct{})
	s.stopCh = stop
	s.nextBackup = s.now().Add(s.cfg.Interval)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("backup scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.String("dir", s.cfg.Dir))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopping", zap.String("reason", "context cancelled"))
			return ctx.Err()
		case <-stop:
			s.logger.Info("backup scheduler stopping", zap.String("reason", "stop requested"))
			return nil
		case <-ticker.C:
			if _, err := s.BackupNow(ctx); err != nil {
				s.logger.Error("scheduled backup failed", zap.Error(err))
			}
			s.mu.Lock()
			s.nextBackup = s.now().Add(s.cfg.Interval)
			s.mu.Unlock()
		}
	}
}

// Stop ends a running scheduler.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return errors.New("backup service is not running")
	}
	close(s.stopCh)
	s.running = false
	return nil
}

// BackupNow copies the database, verifies the copy when configured and then
// applies retention. A retention failure is logged and does not fail the run.
func (s *Service) BackupNow(ctx context.Context) (*Result, error) {
	result, err := s.backupNow(ctx)
	s.mu.Lock()
	observe := s.onBackup
	s.mu.Unlock()
	if observe != nil {
		observe(err)
	}
	return result, err
}

func (s *Service) backupNow(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := s.now()

	if _, err := os.Stat(s.cfg.DBPath); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}

	path := filepath.Join(s.cfg.Dir, backupName(start))
	if err := vacuumInto(s.cfg.DBPath, path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}

	result := &Result{Path: path, Size: info.Size()}
	if s.cfg.Verify {
		if err := verify(path); err != nil {
			_ = os.Remove(path)
			return nil, fmt.Errorf("backup verification failed: %w", err)
		}
		result.Verified = true
	}

	s.mu.Lock()
	s.lastBackup = s.now()
	s.mu.Unlock()

	removed, err := applyRetention(s.cfg.Dir, s.cfg.Retention, s.now())
	if err != nil {
		s.logger.Warn("retention failed", zap.Error(err))
	}
	result.Removed = removed
	result.Duration = time.Since(start)

	s.logger.Info("backup completed",
		zap.String("path", result.Path),
		zap.Int64("size", result.Size),
		zap.Bool("verified", result.Verified),
		zap.Int("removed", removed),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// List returns the stored backups, newest first.
func (s *Service) List() ([]Info, error) {
	return listBackups(s.cfg.Dir)
}

// Restore replaces the database with backupPath. The current database is
// copied aside first and put back if the restore fails. The scheduler must
// be stopped and nothing else may hold the database open.
func (s *Service) Restore(ctx context.Context, backupPath string) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		return ErrRunning
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup not found: %w", err)
	}

	preRestore := s.cfg.DBPath + ".pre-restore"
	hasCurrent := false
	if _, err := os.Stat(s.cfg.DBPath); err == nil {
		if err := vacuumInto(s.cfg.DBPath, preRestore); err != nil {
			return fmt.Errorf("create pre-restore copy: %w", err)
		}
		hasCurrent = true
		defer func() { _ = os.Remove(preRestore) }()
	}

	if err := copyVerified(backupPath, s.cfg.DBPath); err != nil {
		if !hasCurrent {
			return err
		}
		if rbErr := copyVerified(preRestore, s.cfg.DBPath); rbErr != nil {
			return fmt.Errorf("restore failed and rollback failed: %v (restore error: %w)", rbErr, err)
		}
		return fmt.Errorf("restore failed, rolled back to previous state: %w", err)
	}

	s.logger.Info("database restored", zap.String("from", backupPath))
	return nil
}

// HealthCheck reports whether backups are keeping up with the schedule.
func (s *Service) HealthCheck() (*Health, error) {
	s.mu.Lock()
	last, next := s.lastBackup, s.nextBackup
	s.mu.Unlock()

	backups, err := s.List()
	if err != nil {
		return nil, err
	}

	h := &Health{
		Status:        StatusHealthy,
		LastBackup:    last,
		NextBackup:    next,
		TotalBackups:  len(backups),
		Dir:           s.cfg.Dir,
		DiskSpaceUsed: diskUsage(backups),
	}

	// A fresh process has no in-memory record, so fall back to the newest file.
	if last.IsZero() && len(backups) > 0 {
		last = backups[0].CreatedAt
		h.LastBackup = last
	}

	since := s.now().Sub(last)
	switch {
	case last.IsZero():
		h.Message = "No backups yet"
	case since > 2*s.cfg.Interval:
		h.Status = StatusWarning
		h.Message = fmt.Sprintf("Backup overdue by %v", (since - s.cfg.Interval).Round(time.Minute))
	default:
		h.Message = fmt.Sprintf("Last backup: %v ago", since.Round(time.Minute))
	}
	return h, nil
}
