package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/respack/pkg/uid"
)

type binding struct {
	UID  string `json:"uid"`
	Path string `json:"path"`
}

// uidCmd groups the registry commands
var uidCmd = &cobra.Command{
	Use:   "uid",
	Short: "Query and change resource UIDs",
}

var uidGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print the UID recorded in a container header",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := container.Store().GetUID(resPath(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var uidSetCmd = &cobra.Command{
	Use:   "set <path> <uid>",
	Short: "Give a container a new UID",
	Long: `Rewrite the header of a container with a new UID and register it.
Fails if the UID is already bound to another path.

Example:
  respack uid set items/sword.rtxt uid://3ak1x0b2`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := args[1]
		if !strings.HasPrefix(text, "uid://") {
			text = "uid://" + text
		}
		id := uid.FromText(text)
		if !id.Valid() {
			return fmt.Errorf("invalid uid %q", args[1])
		}

		path := resPath(args[0])
		if err := container.Store().SetUID(path, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", id, path)
		return nil
	},
}

var uidListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry bindings",
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")

		var bindings []binding
		err := container.Store().UIDs().Range(func(id uid.ID, path string) bool {
			if strings.HasPrefix(path, prefix) {
				bindings = append(bindings, binding{UID: id.String(), Path: path})
			}
			return true
		})
		if err != nil {
			return err
		}
		sort.Slice(bindings, func(i, j int) bool { return bindings[i].Path < bindings[j].Path })

		if jsonOutput(cmd) {
			if bindings == nil {
				bindings = []binding{}
			}
			return printJSON(cmd, bindings)
		}

		w := newTable(cmd)
		defer w.Flush()
		fmt.Fprintln(w, "UID\tPATH")
		for _, b := range bindings {
			fmt.Fprintf(w, "%s\t%s\n", b.UID, b.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uidCmd)
	uidCmd.AddCommand(uidGetCmd, uidSetCmd, uidListCmd)

	uidListCmd.Flags().String("prefix", "", "Only list paths with this prefix")
}
