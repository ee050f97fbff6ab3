package commands

import (
	"fmt"
	"strings"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/scaffold"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new warren project",
	Long: `Initialize a new warren project with the default configuration and the
starter code template.

Creates:
  • warren.yml - Project configuration file
  • web_template/Cargo.toml - Manifest of the generated service
  • web_template/src/code_template.rs - Starter code the Backend Developer extends

Use --force to replace existing files (generated code is never removed).`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Replace existing warren.yml and starter template")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	initializer := scaffold.NewInitializer(".", cmd.OutOrStdout())
	files, err := initializer.Initialize(forceInit)
	if err != nil {
		if strings.HasPrefix(err.Error(), "project already initialized") {
			return printer.Error("project already initialized", err.Error(), nil)
		}
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess(cmd.OutOrStdout(), files)
	return nil
}
