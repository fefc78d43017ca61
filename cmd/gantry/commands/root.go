package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gantry-dev/gantry/pkg/config"
)

var (
	// Global flags
	manifestPath string
	environment  string
	dbPath       string
	verbose      bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gantry",
		Short: "Gantry - test environment resolver for distributed training",
		Long: `Gantry resolves a declarative test-environment configuration into an
ordered, reproducible install plan and executes it.

A configuration names framework versions or nightly channels, the MPI
backend, and the library under test. Gantry resolves the compatibility
constraints between them and emits every provisioning step with its
dependencies, so the same configuration always produces the same plan.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&manifestPath, "config", "c", "",
		"manifest path (.cue or .yaml); omit to read GANTRY_* environment variables")
	rootCmd.PersistentFlags().StringVar(&environment, "environment", "ci",
		"policy environment (ci, release, dev)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "gantry.db", "plan and run history database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newRulesCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newDevCommand())

	return rootCmd
}

// loadConfig reads the environment configuration from the manifest
// flag, dispatching on extension, or from GANTRY_* variables when no
// manifest is given.
func loadConfig() (*config.EnvironmentConfig, error) {
	if manifestPath == "" {
		return config.FromEnv()
	}
	switch strings.ToLower(filepath.Ext(manifestPath)) {
	case ".cue":
		return config.LoadCUE(manifestPath)
	case ".yaml", ".yml":
		return config.LoadYAML(manifestPath)
	default:
		return nil, fmt.Errorf("unsupported manifest extension: %s", manifestPath)
	}
}
