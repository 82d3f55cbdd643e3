package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"pagegen-backend/internal/model"
	"pagegen-backend/internal/registry"
	"pagegen-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Inspect and create projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects in creation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		reg, err := registry.Open(cfg.Registry.Path)
		if err != nil {
			return err
		}

		store := storage.New(cfg.Storage)
		defer store.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tPROJECT\tMESSAGES")
		for i, p := range reg.List() {
			count := "?"
			if msgs, err := store.GetMessages(cmd.Context(), p.ID); err == nil {
				count = fmt.Sprint(len(msgs))
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, p.ID, count)
		}
		return w.Flush()
	},
}

var projectsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create and register a new project",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		reg, err := registry.Open(cfg.Registry.Path)
		if err != nil {
			return err
		}

		store := storage.New(cfg.Storage)
		defer store.Close()

		project, err := createProject(cmd.Context(), store, reg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), project.ID)
		return nil
	},
}

func createProject(ctx context.Context, store storage.Storage, reg *registry.Registry) (model.Project, error) {
	project := model.Project{ID: uuid.New().String()}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := store.CreateProject(ctx, project.ID); err != nil && !errors.Is(err, storage.ErrProjectExists) {
		return project, fmt.Errorf("create project: %w", err)
	}
	if err := reg.Append(project); err != nil {
		return project, err
	}
	return project, nil
}

func init() {
	projectsCmd.AddCommand(projectsListCmd, projectsNewCmd)
}
