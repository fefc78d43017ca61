package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gantry-dev/gantry/pkg/engine"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration without writing a plan",
		Long: `Validate the environment configuration end to end: structural
validation, consistency checks, and a full dry resolution including
the policy gate. Nothing is written.`,
		Example: `  # Validate a manifest
  gantry validate -c env.cue

  # Validate the GANTRY_* environment
  gantry validate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			plan, err := engine.NewPlanner(nil).Plan(cfg)
			if err != nil {
				return fmt.Errorf("configuration does not resolve: %w", err)
			}
			if err := gatePlan(cmd, plan, false); err != nil {
				return err
			}

			log.Info().
				Str("library", plan.Library).
				Int("steps", len(plan.Steps)).
				Msg("configuration is valid")
			return nil
		},
	}
	return cmd
}
