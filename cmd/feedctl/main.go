// Command feedctl is a dev CLI for deepfeed maintenance and debugging tasks.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/deepfeed/internal/config"
	"github.com/ibeckermayer/deepfeed/internal/logging"
	"github.com/ibeckermayer/deepfeed/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand gets after the root has loaded configuration.
type env struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:          "feedctl",
		Short:        "Maintenance and debugging commands for deepfeed",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.log != nil {
				_ = e.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "config file (default is the user config dir)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "log to stderr at debug level")

	root.AddCommand(
		newExportCmd(e),
		newExportsCmd(e),
		newInterestsCmd(e),
		newOpenCmd(e),
		newReferenceTestCmd(e),
		newLLMCmd(e),
	)
	return root
}

func (e *env) load() error {
	if e.configPath == "" {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		e.configPath = path
	}
	cfg, err := config.LoadFrom(e.configPath)
	if err != nil {
		return err
	}
	e.cfg = cfg

	level := "warn"
	if e.verbose {
		level = "debug"
	}
	e.log, err = logging.New(config.LogConfig{Level: level, File: logging.Stderr})
	return err
}

func (e *env) openStore() (*store.Store, error) {
	dir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}
	return store.New(store.DefaultPath(dir))
}

func newOpenCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|cache>",
		Short:     "Open the config file in the default editor or the cache directory in the file explorer",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "cache"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			var err error

			switch args[0] {
			case "config":
				path = e.configPath
				if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
					if err := e.cfg.SaveTo(path); err != nil {
						return fmt.Errorf("failed to write default config: %w", err)
					}
				}
			case "cache":
				path, err = config.CacheDir()
			default:
				return fmt.Errorf("unknown target: %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to get path: %w", err)
			}

			if err := browser.OpenFile(path); err != nil {
				return fmt.Errorf("failed to open: %w", err)
			}
			return nil
		},
	}
}
