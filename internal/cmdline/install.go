package cmdline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"webpm/internal/pm"
)

func newInstallCmd(env *environment) *cobra.Command {
	var saveDev, noSave, production, force, strictSRI bool

	cmd := &cobra.Command{
		Use:   "install [packages...]",
		Short: "Resolve and install dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			release, err := acquireInstallLock(env.projectDir)
			if err != nil {
				return err
			}
			defer release()

			s := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithHiddenCursor(true))
			s.Suffix = " resolving dependencies"
			s.Start()
			defer s.Stop()

			result, err := env.pm.Install(context.Background(), args, pm.InstallOptions{
				SaveDev:    saveDev,
				NoSave:     noSave,
				Production: production,
				Force:      force,
				StrictSRI:  strictSRI,
				OnProgress: func(ev pm.ProgressEvent) {
					s.Suffix = fmt.Sprintf(" %s %s (%d/%d)", ev.Phase, ev.Package, ev.Current, ev.Total)
				},
			})
			if err != nil {
				s.Stop()
				return env.logger.Errorf("install failed: %s", err)
			}
			s.Stop()
			reportResult(env.logger, result)
			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&saveDev, "save-dev", false, "save to devDependencies")
	flags.BoolVar(&noSave, "no-save", false, "do not modify package.json")
	flags.BoolVar(&production, "production", false, "exclude devDependencies")
	flags.BoolVar(&force, "force", false, "ignore the existing lockfile")
	flags.BoolVar(&strictSRI, "strict-sri", false, "fail on integrity mismatch instead of warning")
	return cmd
}
