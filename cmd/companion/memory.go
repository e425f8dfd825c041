package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/companion/internal/app"
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

func (c *cli) memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "memory",
		Aliases: []string{"mem"},
		Short:   "Manage memories",
	}
	cmd.AddCommand(c.memoryAddCmd(), c.memoryListCmd(), c.memorySearchCmd(), c.memoryRmCmd())
	return cmd
}

func (c *cli) memoryAddCmd() *cobra.Command {
	var (
		person   string
		noReview bool
		yes      bool
	)
	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Add a memory about a person",
		Long: `Add a memory about a person. The text comes from the arguments, or from
stdin when none are given. Without --person the most recently added person is
used.

By default the text is analyzed first and the analysis is shown for review.
--yes saves it without asking; --no-review skips the analysis and leaves the
memory for background enrichment by the web server. Text piped on stdin
needs --yes or --no-review, since stdin cannot also answer the prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(c.in)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			capture := engine.NewCaptureSession(ctx, a.Persons, a.Memories, a.Assistant, a.Logger)
			if person != "" {
				p, err := resolvePerson(ctx, a, person)
				if err != nil {
					return err
				}
				if err := capture.SelectPerson(ctx, p.ID); err != nil {
					return err
				}
			}
			capture.SetText(text)

			if noReview {
				m, err := capture.SaveRaw(ctx)
				if err != nil {
					return err
				}
				c.printf("Saved %s (unprocessed)\n", m.ID)
				return nil
			}
			return c.reviewAndSave(ctx, capture, yes)
		},
	}
	cmd.Flags().StringVarP(&person, "person", "p", "", "Person name or ID")
	cmd.Flags().BoolVar(&noReview, "no-review", false, "Save without AI analysis")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Save the analysis without asking")
	return cmd
}

// reviewAndSave analyzes the draft, shows the result and saves it once
// confirmed.
func (c *cli) reviewAndSave(ctx context.Context, capture *engine.CaptureSession, yes bool) error {
	snap, err := capture.Analyze(ctx)
	if err != nil {
		if snap.Error != "" {
			return errors.New(snap.Error)
		}
		return err
	}

	c.printf("Analysis for %s:\n", snap.Person.Name)
	c.printAnalysis(snap.Analysis)

	if !yes && !c.confirm("Save this memory? [Y/n] ") {
		capture.Discard()
		c.printf("Discarded\n")
		return nil
	}

	m, err := capture.Save(ctx, nil)
	if err != nil {
		return err
	}
	c.printf("Saved %s\n", m.ID)
	return nil
}

// confirm reads a yes/no answer. An empty answer is yes.
func (c *cli) confirm(prompt string) bool {
	c.printf("%s", prompt)
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true
	}
	return false
}

func (c *cli) memoryListCmd() *cobra.Command {
	var (
		person      string
		limit       int
		unprocessed bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			query := storage.MemoryQuery{Limit: limit}
			if person != "" {
				p, err := resolvePerson(ctx, a, person)
				if err != nil {
					return err
				}
				query.PersonID = p.ID
			}
			if unprocessed {
				processed := false
				query.Processed = &processed
			}
			memories, err := a.Memories.QueryMemories(ctx, query)
			if err != nil {
				return err
			}
			return c.printMemories(ctx, a, memories)
		},
	}
	cmd.Flags().StringVarP(&person, "person", "p", "", "Only memories about this person")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum memories to show")
	cmd.Flags().BoolVar(&unprocessed, "unprocessed", false, "Only memories waiting for analysis")
	return cmd
}

func (c *cli) memorySearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search memory text, summaries and topics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			memories, err := a.Memories.SearchMemories(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return c.printMemories(ctx, a, memories)
		},
	}
}

func (c *cli) memoryRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Directory.DeleteMemory(ctx, args[0]); err != nil {
				return err
			}
			c.printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

// printMemories prints memories under the name of their person.
func (c *cli) printMemories(ctx context.Context, a *app.App, memories []types.Memory) error {
	if len(memories) == 0 {
		c.printf("No memories found\n")
		return nil
	}
	names := make(map[string]string)
	for i := range memories {
		m := &memories[i]
		name, ok := names[m.PersonID]
		if !ok {
			p, err := a.Persons.GetPerson(ctx, m.PersonID)
			if err != nil {
				return err
			}
			name = p.Name
			names[m.PersonID] = name
		}
		c.printf("[%s] ", name)
		c.printMemory(m)
	}
	return nil
}

func (c *cli) printMemory(m *types.Memory) {
	c.printf("%s  %s\n", m.CreatedAt.Local().Format(time.DateTime), m.ID)
	if !m.IsProcessed {
		c.printf("  %s\n  (not analyzed yet)\n\n", truncate(m.RawInput, 200))
		return
	}
	c.printf("  %s\n", m.AISummary)
	if c.verbose {
		a := m.Analysis()
		c.printf("  Text: %s\n", m.RawInput)
		c.printAnalysis(&a)
	} else if m.Topic != "" {
		c.printf("  Topic: %s\n", m.Topic)
	}
	c.printf("\n")
}

func (c *cli) printAnalysis(a *types.Analysis) {
	if a == nil {
		return
	}
	c.printf("  Topic:   %s\n", a.Topic)
	if a.Emotion != nil {
		c.printf("  Emotion: %s\n", *a.Emotion)
	}
	if a.TimeReference != nil {
		c.printf("  When:    %s\n", *a.TimeReference)
	}
	c.printf("  Summary: %s\n", a.Summary)
	for _, item := range a.ActionItems {
		c.printf("  - todo: %s\n", item)
	}
	for _, d := range a.KeyDetails {
		c.printf("  - %s\n", d)
	}
}
