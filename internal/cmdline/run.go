package cmdline

import (
	"context"

	"github.com/spf13/cobra"
)

func newRunCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Record a script invocation (no shell is provided)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.pm.Run(context.Background(), args[0]); err != nil {
				return env.logger.Errorf("%s", err)
			}
			env.logger.Successf("script %q requested", args[0])
			return nil
		},
	}
}
