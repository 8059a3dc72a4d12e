package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/dotcharts/pkg/client"
)

// healthCommand checks a running server, for container health checks.
func (c *CLI) healthCommand() *cobra.Command {
	var (
		serverURL string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that a dotcharts server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cl, err := client.New(serverURL, client.WithRetry(1, 0))
			if err != nil {
				return err
			}
			if err := cl.Health(ctx); err != nil {
				printError("%s is not healthy", serverURL)
				return err
			}
			printSuccess("%s is healthy", serverURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:3000", "server URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "give up after this long")
	return cmd
}
