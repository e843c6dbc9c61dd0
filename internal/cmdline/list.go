package cmdline

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			packages, err := env.pm.List(context.Background())
			if err != nil {
				return env.logger.Errorf("list failed: %s", err)
			}
			for _, p := range packages {
				fmt.Fprintf(env.logger.Out, "%s@%s (%s)\n", p.Name, p.Version, p.Path)
			}
			return nil
		},
	}
}
