/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/respack/pkg/config"
	"github.com/ssargent/respack/pkg/di"
	"github.com/ssargent/respack/pkg/store"
)

// skipContainer marks commands that run without a store
const skipContainer = "skip-container"

var container *di.Container

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "respack",
	Short: "respack - resource containers with stable UIDs",
	Long: `respack saves and loads resources as text (.rtxt) or binary (.rbin)
containers, keeps a registry of stable UIDs for them and builds export
packages with text sources converted to binary.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipContainer] == "true" {
			return nil
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		c, err := di.NewContainer(cfg, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		container = c
		return nil
	},
}

// loadConfig layers command line flags over the config file and environment
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("project-root") {
		cfg.ProjectRoot, _ = cmd.Flags().GetString("project-root")
	}
	if cmd.Flags().Changed("registry") {
		cfg.Registry.Backend, _ = cmd.Flags().GetString("registry")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, nil
}

// run executes the command tree with args and releases the container
func run(args []string, out io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	defer func() {
		if container != nil {
			if err := container.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			container = nil
		}
	}()
	return rootCmd.Execute()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		os.Exit(1)
	}
}

// resPath turns a command line argument into a project path. Plain paths are
// taken relative to the project root.
func resPath(arg string) string {
	if strings.HasPrefix(arg, store.Scheme) {
		return arg
	}
	return store.Scheme + strings.TrimPrefix(filepath.ToSlash(filepath.Clean(arg)), "/")
}

func resPaths(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = resPath(arg)
	}
	return out
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.GetDefaultConfigPath(), "Path to the config file")
	rootCmd.PersistentFlags().StringP("project-root", "p", ".", "Project root that res:// paths resolve under")
	rootCmd.PersistentFlags().String("registry", config.BackendPebble, "UID registry backend (memory or pebble)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table or json)")
}
