package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/dotcharts/pkg/render"
)

// enginesCommand lists the layout engines accepted by the engine parameter.
func (c *CLI) enginesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the Graphviz layout engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range render.Engines() {
				if name == render.DefaultEngine {
					fmt.Fprintln(out, name+" "+StyleDim.Render("(default)"))
					continue
				}
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
