package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/respack/pkg/format"
)

type classification struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify [path...]",
	Short: "Show the container format of paths",
	Long: `Show the container format each path maps to by its extension.
Without arguments the recognized extensions are listed.

Examples:
  respack classify items/sword.rtxt icons/sword.png
  respack classify`,
	Annotations: map[string]string{skipContainer: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			exts := format.Extensions()
			if jsonOutput(cmd) {
				return printJSON(cmd, exts)
			}
			for _, ext := range exts {
				fmt.Fprintf(cmd.OutOrStdout(), ".%s\t%s\n", ext, format.Classify("."+ext))
			}
			return nil
		}

		results := make([]classification, len(args))
		for i, arg := range args {
			results[i] = classification{Path: arg, Format: format.Classify(arg).String()}
		}
		if jsonOutput(cmd) {
			return printJSON(cmd, results)
		}

		w := newTable(cmd)
		defer w.Flush()
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\n", r.Path, r.Format)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
