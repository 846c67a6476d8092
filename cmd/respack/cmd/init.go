/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/respack/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a default configuration for a project.

This command will:
- Write the config file (--config, default ~/.config/respack/config.yaml)
- Point project_root at --project-root
- Select the pebble UID registry under .respack/uids

Examples:
  respack init --project-root=./game
  respack init --config=./respack.yaml --force`,
	Annotations: map[string]string{skipContainer: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		projectRoot, _ := cmd.Flags().GetString("project-root")
		force, _ := cmd.Flags().GetBool("force")

		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Config already exists at %s. Use --force to overwrite.\n", configPath)
			return nil
		}

		root, err := filepath.Abs(projectRoot)
		if err != nil {
			return fmt.Errorf("invalid project root: %w", err)
		}

		cfg, err := config.BootstrapConfig(configPath, root)
		if err != nil {
			return err
		}

		cmd.Printf("Wrote %s\n", configPath)
		cmd.Printf("Project root: %s\n", cfg.ProjectRoot)
		cmd.Printf("UID registry: %s (%s)\n", cfg.Registry.Backend, cfg.RegistryDir())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}
