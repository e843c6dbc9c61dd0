// Package cmdline holds the native CLI's cobra command tree, wiring
// internal/pm against a real disk via internal/vfs.Native. Adapted from
// the shape of the teacher's internal/cmd.getCmd/RunWithArgs (a root
// cobra.Command with persistent flags, one subcommand per operation,
// viper merging flags/env/config).
package cmdline

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/nightlyone/lockfile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"webpm/internal/config"
	"webpm/internal/pkgcache"
	"webpm/internal/pm"
	"webpm/internal/pmlog"
	"webpm/internal/registry"
	"webpm/internal/vfs"
)

// Execute builds and runs the root command with args (not including the
// binary name), returning a process exit code.
func Execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var cwd string
	var registryURL string
	var verbose bool

	cmd := &cobra.Command{
		Use:           "webpm",
		Short:         "An npm-compatible package manager core",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&cwd, "cwd", "", "project directory (default: current working directory)")
	flags.StringVar(&registryURL, "registry", "", "override the registry URL")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	_ = viper.BindPFlag("cwd", flags.Lookup("cwd"))
	_ = viper.BindPFlag("registry", flags.Lookup("registry"))

	env := &environment{}
	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		resolvedCwd := viper.GetString("cwd")
		if resolvedCwd == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			resolvedCwd = wd
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if override := viper.GetString("registry"); override != "" {
			cfg.RegistryURL = override
		}
		if verbose {
			cfg.LogLevel = "debug"
		}
		cfg.Logger = hclog.New(&hclog.LoggerOptions{Name: "webpm", Level: hclog.LevelFromString(cfg.LogLevel)})

		nativeFS, err := vfs.NewNative(resolvedCwd)
		if err != nil {
			return err
		}

		cacheFS, err := vfs.NewNative(cfg.CacheDir)
		if err != nil {
			return err
		}
		diskStore, err := pkgcache.NewDiskStore(cacheFS, "/")
		if err != nil {
			return err
		}

		cache := pkgcache.New(pkgcache.Config{
			MaxEntries: cfg.CacheMaxEntries,
			MaxBytes:   cfg.CacheMaxBytes,
			TTL:        cfg.CacheTTL,
			Persistent: diskStore,
			Logger:     cfg.Logger,
		})

		client := registry.NewClient(registry.Options{
			BaseURL:         cfg.RegistryURL,
			MetadataTTL:     cfg.MetadataTTL,
			MaxAttempts:     cfg.MaxAttempts,
			MetadataTimeout: cfg.MetadataTimeout,
			TarballTimeout:  cfg.TarballTimeout,
			StrictSRI:       cfg.StrictSRI,
			Logger:          cfg.Logger,
		})

		env.cfg = cfg
		env.logger = pmlog.New("webpm", cfg.LogLevel)
		env.pm = pm.New(nativeFS, "/", client, cache, cfg.Logger)
		env.projectDir = resolvedCwd
		return nil
	}

	cmd.AddCommand(newInstallCmd(env))
	cmd.AddCommand(newUninstallCmd(env))
	cmd.AddCommand(newListCmd(env))
	cmd.AddCommand(newRunCmd(env))
	return cmd
}

// environment carries the PM instance built in PersistentPreRunE to each
// subcommand's RunE, since cobra commands are constructed before flags are
// parsed.
type environment struct {
	cfg        *config.Config
	logger     *pmlog.Logger
	pm         *pm.PM
	projectDir string
}

// acquireInstallLock takes the advisory process lock the teacher's daemon
// connector pattern uses nightlyone/lockfile for, guarding against two OS
// processes driving an install against the same project directory
// concurrently — the browser build has no such concern since a tab only
// ever runs one PM instance (spec §1's non-goal), so this lock lives in
// the native CLI layer only.
func acquireInstallLock(projectDir string) (func(), error) {
	lockPath := projectDir + "/node_modules/.webpm-install.lock"
	if err := os.MkdirAll(projectDir+"/node_modules", 0755); err != nil {
		return nil, err
	}
	lock, err := lockfile.New(lockPath)
	if err != nil {
		return nil, err
	}
	if err := lock.TryLock(); err != nil {
		return nil, fmt.Errorf("another install appears to be running: %w", err)
	}
	return func() { _ = lock.Unlock() }, nil
}

func reportResult(logger *pmlog.Logger, result *pm.InstallResult) {
	for _, w := range result.Warnings {
		logger.Warnf("%s", w)
	}
	for _, e := range result.Errors {
		logger.Warnf("%s", e.Error())
	}
	if result.Success {
		logger.Successf("done in %s (%d packages)", result.Duration.Round(time.Millisecond), len(result.Installed))
	} else {
		logger.Errorf("install failed after %s", result.Duration.Round(time.Millisecond))
	}
}
