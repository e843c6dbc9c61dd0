package cmdline

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"webpm/internal/pm"
)

func newUninstallCmd(env *environment) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "uninstall <packages...>",
		Short: "Remove dependencies and regenerate the lockfile",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				confirmed := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("Remove %d package(s) from node_modules?", len(args)),
					Default: false,
				}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					env.logger.Printf("aborted")
					return nil
				}
			}

			release, err := acquireInstallLock(env.projectDir)
			if err != nil {
				return err
			}
			defer release()

			result, err := env.pm.Uninstall(context.Background(), args, pm.InstallOptions{})
			if err != nil {
				return env.logger.Errorf("uninstall failed: %s", err)
			}
			reportResult(env.logger, result)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
