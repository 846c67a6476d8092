package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/respack/pkg/export"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [path...]",
	Short: "Build an export package",
	Long: `Build an export package from the given containers, or from every
container under the project root when no path is given. Text sources are
shipped as binary artifacts; their UIDs point at the artifacts only while
the export runs.

Examples:
  respack export
  respack export items/sword.rtxt --sink archive --out build/game.tar.zst
  respack export --sink s3 --prefix nightly`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := container.Config()
		if cmd.Flags().Changed("sink") {
			cfg.Export.Sink, _ = cmd.Flags().GetString("sink")
		}
		if cmd.Flags().Changed("out") {
			cfg.Export.Out, _ = cmd.Flags().GetString("out")
		}
		prefix, _ := cmd.Flags().GetString("prefix")

		paths := resPaths(args)
		if len(paths) == 0 {
			var err error
			paths, err = export.Discover(cfg.ProjectRoot)
			if err != nil {
				return fmt.Errorf("failed to list containers: %w", err)
			}
		}
		if len(paths) == 0 {
			return fmt.Errorf("nothing to export under %s", cfg.ProjectRoot)
		}

		sink, closer, err := container.Sink(prefix)
		if err != nil {
			return err
		}
		defer closer.Close()

		remapper := container.Remapper()
		if err := remapper.Run(cmd.Context(), paths, sink); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d containers (%s sink, session %s)\n",
			len(paths), cfg.Export.Sink, remapper.Session())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("sink", "", "Sink override (dir, archive or s3)")
	exportCmd.Flags().String("out", "", "Output directory or archive file override")
	exportCmd.Flags().String("prefix", "", "Object key prefix for the s3 sink")
}
