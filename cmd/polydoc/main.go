package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/polydoc/polydoc/internal/cli"
	"github.com/polydoc/polydoc/internal/export"
	"github.com/polydoc/polydoc/internal/models"
	"github.com/polydoc/polydoc/internal/processor"
)

func main() {
	flags := cli.NewFlags()

	rootCmd := cli.CreateRootCommand(flags)

	cobra.OnInitialize(func() {
		cli.InitConfig(flags.CfgFile)
	})

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, args, flags)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCommand(cmd *cobra.Command, args []string, flags *cli.Flags) error {
	ctx := context.Background()

	// Handle --archive flag
	if flags.Archive {
		archivePath, err := export.ArchiveExports(flags.OutputDir)
		if err != nil {
			return fmt.Errorf("failed to archive exports: %w", err)
		}
		fmt.Printf("Exports archived to: %s\n", archivePath)
		return nil
	}

	// Handle --list-models flag
	if flags.ListModels {
		lister := models.NewLister(cli.GetAPIKey(flags.Provider), flags.BaseURL)
		return lister.ListAvailableModels()
	}

	proc, err := processor.NewProcessor(flags)
	if err != nil {
		return err
	}
	defer proc.Close()

	// Project lifecycle commands operating on --project
	switch {
	case flags.ListProjects:
		return proc.ListProjects(ctx)
	case flags.ShowStatus:
		return requireProject(ctx, flags, proc.ShowStatus)
	case flags.PauseProject:
		return requireProject(ctx, flags, proc.PauseProject)
	case flags.ResetProject:
		return requireProject(ctx, flags, proc.ResetProject)
	case flags.DeleteProject:
		return requireProject(ctx, flags, proc.DeleteProject)
	}

	// Translate a new document, or resume with --project
	if len(args) > 0 {
		return proc.ProcessFile(ctx, args[0])
	}
	if flags.ProjectID != "" {
		return proc.ProcessFile(ctx, "")
	}

	return fmt.Errorf("no input file given (see polydoc --help)")
}

func requireProject(ctx context.Context, flags *cli.Flags, op func(context.Context, string) error) error {
	if flags.ProjectID == "" {
		return fmt.Errorf("--project is required for this operation")
	}
	return op(ctx, flags.ProjectID)
}
