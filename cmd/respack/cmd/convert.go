package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <src> <dst>",
	Short: "Rewrite a container in another format",
	Long: `Load a container and save it to another path. The destination
extension picks the format, so .rtxt -> .rbin converts text to binary.
The destination keeps its own UID if it already exists.

Example:
  respack convert items/sword.rtxt build/sword.rbin`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := container.Store()
		src, dst := resPath(args[0]), resPath(args[1])

		if err := s.Convert(src, dst); err != nil {
			return err
		}

		id, err := s.GetUID(dst)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", src, dst, id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
