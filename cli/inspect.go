package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/serisow/coalmind/prompt"
	"github.com/serisow/coalmind/schema"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the schemas and prompt templates sent to the model",
}

var inspectSchemaCmd = &cobra.Command{
	Use:   "schema [name|file.yaml]",
	Short: "Print the format instructions of a schema, or list the built-in schemas",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(schema.BuiltinNames(), "\n"))
			return nil
		}
		d, err := resolveSchema(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), schema.RenderFormatInstructions(d))
		return nil
	},
}

var inspectTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the prompt templates and the variables each one needs",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := make([]string, 0, len(prompt.Builtins))
		for name := range prompt.Builtins {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, strings.Join(prompt.Variables(prompt.Builtins[name]), ", "))
		}
		return nil
	},
}

// resolveSchema loads arg as a YAML file when it names one, otherwise as a
// built-in schema.
func resolveSchema(arg string) (schema.Descriptor, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return schema.LoadFile(arg)
	}
	return schema.Builtin(arg)
}

func init() {
	inspectCmd.AddCommand(inspectSchemaCmd, inspectTemplatesCmd)
}
