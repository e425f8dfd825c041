// Command companion manages people and memories from the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/app"
	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/logging"
	"github.com/scrypster/companion/internal/notify"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the global flags and the terminal streams.
type cli struct {
	dataDir    string
	configPath string
	verbose    bool

	in  io.Reader
	out io.Writer
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{in: in, out: out}

	root := &cobra.Command{
		Use:   "companion",
		Short: "Remember the little things about the people in your life",
		Long: `Memory Companion keeps short notes about people, lets an AI model pull
out the topic, mood, promises and key facts, and answers questions from what
you wrote down.

Examples:
  # Add a person and a memory about them
  companion person add "Sam"
  companion memory add --person Sam "Sam starts the new job on Monday"

  # Save without AI review, the web server analyzes it later
  companion memory add --person Sam --no-review "Loves dark chocolate"

  # Ask a question
  companion ask "What did Sam say about the new job?"`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)

	root.PersistentFlags().StringVar(&c.dataDir, "data", "", "Data directory (default: $COMPANION_DATA_PATH or ./data)")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to YAML config file (default: $COMPANION_CONFIG_FILE)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(
		c.personCmd(),
		c.memoryCmd(),
		c.askCmd(),
		c.importCmd(),
		c.backupCmd(),
	)
	return root
}

// loadConfig reads the configuration and applies --data.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.dataDir != "" {
		if cfg.Backup.Path == filepath.Join(cfg.Storage.DataPath, "backups") {
			cfg.Backup.Path = filepath.Join(c.dataDir, "backups")
		}
		cfg.Storage.DataPath = c.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// logger writes console logs to stderr, warnings only unless --verbose.
func (c *cli) logger() (*zap.Logger, error) {
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	return logging.New(config.ModeDevelopment, level)
}

// open builds the services. Every mutation is also written as an event file
// so a running web server refreshes its clients.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	a.Events.Add(notify.NewEventWriter(cfg.Storage.DataPath, logger))
	return a, nil
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
