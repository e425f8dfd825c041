package main

import (
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Import a directory of Markdown journal files",
		Long: `Import every .md file under a directory as one memory.

The person comes from the "person" frontmatter key or the enclosing directory
name, and is created when unknown. Files whose frontmatter carries a topic or
summary are stored as analyzed; the rest wait for background enrichment.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Importer.Import(ctx, args[0])
			if err != nil {
				return err
			}

			c.printf("Imported %d of %d file(s) in %s\n", report.Imported, report.Files, report.Duration.Round(time.Millisecond))
			c.printf("  Analyzed:       %d\n", report.Processed)
			c.printf("  Skipped:        %d\n", report.Skipped)
			c.printf("  People created: %d\n", report.PersonsCreated)
			if len(report.Errors) > 0 {
				c.printf("  Errors:\n")
				for _, e := range report.Errors {
					c.printf("    %s\n", e)
				}
			}
			return nil
		},
	}
}
