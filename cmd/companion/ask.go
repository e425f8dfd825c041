package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/companion/internal/engine"
)

func (c *cli) askCmd() *cobra.Command {
	var showSources bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your memories",
		Long: `Ask a question answered only from analyzed memories.

Examples:
  companion ask "When is Sam's birthday?"
  companion ask --sources "What did I promise Alex?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			conv := engine.NewQueryAssistant(a.Memories, a.Assistant, a.Sources, a.Logger)
			answer, err := conv.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				// The transcript holds the apology shown to the user.
				if answer != nil {
					c.printf("%s\n", answer.Text)
				}
				return errors.New(conv.LastError())
			}
			if answer == nil {
				return nil
			}

			c.printf("%s\n", answer.Text)
			if (showSources || c.verbose) && len(answer.SourceMemories) > 0 {
				c.printf("\nSources:\n")
				for i := range answer.SourceMemories {
					m := &answer.SourceMemories[i]
					c.printf("  %s  %s\n", m.ID, truncate(m.AISummary, 80))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", false, "Show the memories the answer drew on")
	return cmd
}
