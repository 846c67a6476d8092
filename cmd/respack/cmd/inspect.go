package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/respack/pkg/format"
	"github.com/ssargent/respack/pkg/resource"
)

type inspection struct {
	Path       string          `json:"path" yaml:"path"`
	Format     string          `json:"format" yaml:"format"`
	Class      string          `json:"class" yaml:"class"`
	UID        string          `json:"uid" yaml:"uid"`
	Registered bool            `json:"registered" yaml:"registered"`
	Fields     resource.Fields `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "Show the header and payload of a container",
	Long: `Show the header of a container and, unless --header-only is set,
its decoded payload. Loading the payload resolves external references and
registers the container's UID if the registry lost it.

Examples:
  respack inspect items/sword.rtxt
  respack inspect res://items/sword.rbin --header-only -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := container.Store()
		path := resPath(args[0])
		headerOnly, _ := cmd.Flags().GetBool("header-only")

		class, err := s.GetClass(path)
		if err != nil {
			return err
		}

		result := inspection{
			Path:   path,
			Format: format.Classify(path).String(),
			Class:  class,
		}

		if !headerOnly {
			res, err := s.Load(path)
			if err != nil {
				return err
			}
			fields, err := res.EncodeFields(resource.NewEncoder(s, path))
			if err != nil {
				return err
			}
			result.Fields = fields
		}

		id, err := s.GetUID(path)
		if err != nil {
			return err
		}
		bound, _ := s.UIDs().Path(id)
		result.UID = id.String()
		result.Registered = id.Valid() && bound == path

		if jsonOutput(cmd) {
			return printJSON(cmd, result)
		}

		w := newTable(cmd)
		fmt.Fprintf(w, "Path:\t%s\n", result.Path)
		fmt.Fprintf(w, "Format:\t%s\n", result.Format)
		fmt.Fprintf(w, "Class:\t%s\n", result.Class)
		fmt.Fprintf(w, "UID:\t%s\n", result.UID)
		fmt.Fprintf(w, "Registered:\t%t\n", result.Registered)
		if err := w.Flush(); err != nil {
			return err
		}

		if result.Fields != nil {
			data, err := yaml.Marshal(map[string]any(result.Fields))
			if err != nil {
				return fmt.Errorf("failed to render payload: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s", data)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().Bool("header-only", false, "Read only the header")
}
