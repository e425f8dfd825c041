package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/companion/internal/app"
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/pkg/types"
)

func (c *cli) personCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Manage people",
	}
	cmd.AddCommand(c.personAddCmd(), c.personListCmd(), c.personShowCmd(), c.personRmCmd())
	return cmd
}

func (c *cli) personAddCmd() *cobra.Command {
	var photo string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a person",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var photoURI *string
			if photo != "" {
				photoURI = &photo
			}
			p, err := a.Persons.CreatePerson(ctx, strings.Join(args, " "), photoURI)
			if err != nil {
				return err
			}
			c.printf("Added %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&photo, "photo", "", "Photo path or URL")
	return cmd
}

func (c *cli) personListCmd() *cobra.Command {
	var (
		sort  string
		query string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List people",
		Long: `List people with their memory count.

Sort orders: latest (default), alphabetical, most_memories. Without --sort the
saved default sort is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			order := a.Config.User.DefaultSort
			if sort != "" {
				order = types.ParsePersonSort(sort)
			}
			view := a.Directory.ListPersons(ctx, order, query)
			switch view.State {
			case types.ViewError:
				return errors.New(view.Error)
			case types.ViewEmpty:
				c.printf("No people found\n")
				return nil
			}

			tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMEMORIES\tADDED\tID")
			for _, p := range view.Persons {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.Name, p.MemoryCount, p.CreatedAt.Local().Format(time.DateOnly), p.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&sort, "sort", "s", "", "Sort order (latest, alphabetical, most_memories)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only names containing this text")
	return cmd
}

func (c *cli) personShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name-or-id>",
		Short: "Show a person and their memories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := resolvePerson(ctx, a, strings.Join(args, " "))
			if err != nil {
				return err
			}
			view := a.Directory.PersonDetail(ctx, p.ID)
			if view.State == types.ViewError {
				return errors.New(view.Error)
			}

			c.printf("%s\n", view.Person.Name)
			c.printf("  ID:    %s\n", view.Person.ID)
			if view.Person.PhotoURI != nil {
				c.printf("  Photo: %s\n", *view.Person.PhotoURI)
			}
			c.printf("  Added: %s\n\n", view.Person.CreatedAt.Local().Format(time.DateTime))
			if view.State == types.ViewEmpty {
				c.printf("No memories yet\n")
				return nil
			}
			for i := range view.Memories {
				c.printMemory(&view.Memories[i])
			}
			return nil
		},
	}
}

func (c *cli) personRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name-or-id>",
		Short: "Delete a person and all of their memories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := resolvePerson(ctx, a, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if err := a.Directory.DeletePerson(ctx, p.ID); err != nil {
				return err
			}
			c.printf("Deleted %s\n", p.Name)
			return nil
		},
	}
}

// resolvePerson finds a person by ID, then by exact name ignoring case.
func resolvePerson(ctx context.Context, a *app.App, ref string) (*types.Person, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, engine.ErrNoPersonChosen
	}
	if p, err := a.Persons.GetPerson(ctx, ref); err == nil {
		return p, nil
	} else if !errors.Is(err, engine.ErrPersonNotFound) {
		return nil, err
	}

	candidates, err := a.Persons.SearchPersons(ctx, ref)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if strings.EqualFold(candidates[i].Name, ref) {
			return &candidates[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", engine.ErrPersonNotFound, ref)
}
