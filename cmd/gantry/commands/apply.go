package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gantry-dev/gantry/pkg/engine"
	"github.com/gantry-dev/gantry/pkg/executor"
	"github.com/gantry-dev/gantry/pkg/stores"
	"github.com/gantry-dev/gantry/pkg/telemetry"
)

func newApplyCommand() *cobra.Command {
	var (
		planFile string
		planID   string
		enforce  bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Execute a resolved install plan",
		Long: `Execute an install plan step by step on the local machine.

The plan comes from a file written by 'gantry plan', or from the
history database by ID. Execution halts on the first failing step;
the run and its per-step results are recorded in the database.`,
		Example: `  # Execute a plan file
  gantry apply --plan plan.json

  # Execute a saved plan by ID, rejecting policy violations
  gantry apply --plan-id 6a1f... --enforce`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (planFile == "") == (planID == "") {
				return fmt.Errorf("exactly one of --plan and --plan-id is required")
			}

			plan, resolvedID, err := loadPlan(cmd, planFile, planID)
			if err != nil {
				return err
			}
			if err := gatePlan(cmd, plan, enforce); err != nil {
				return err
			}

			logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
				Level:  logLevel(),
				Format: "console",
				Output: "stderr",
			})
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}

			exec := executor.NewLocalExecutor(nil, logger, executor.WithPlanID(resolvedID))
			run, err := exec.Execute(cmd.Context(), plan)
			if err != nil {
				return fmt.Errorf("execute plan: %w", err)
			}

			if _, err := withStore(cmd, func(store stores.Store) (struct{}, error) {
				return struct{}{}, store.SaveRun(cmd.Context(), run)
			}); err != nil {
				return fmt.Errorf("record run: %w", err)
			}

			log.Info().
				Str("run_id", run.ID).
				Str("status", string(run.Status)).
				Int("steps", len(run.Results)).
				Msg("run recorded")
			if run.Status == engine.RunStatusFailed {
				return fmt.Errorf("run %s failed", run.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&planFile, "plan", "p", "", "plan file to execute")
	cmd.Flags().StringVar(&planID, "plan-id", "", "saved plan ID to execute")
	cmd.Flags().BoolVar(&enforce, "enforce", false, "reject the plan on policy violations")

	return cmd
}

func loadPlan(cmd *cobra.Command, planFile, planID string) (*engine.InstallPlan, string, error) {
	if planFile != "" {
		body, err := os.ReadFile(planFile)
		if err != nil {
			return nil, "", fmt.Errorf("read plan: %w", err)
		}
		plan := &engine.InstallPlan{}
		if err := json.Unmarshal(body, plan); err != nil {
			return nil, "", fmt.Errorf("decode plan: %w", err)
		}
		if err := plan.Validate(); err != nil {
			return nil, "", fmt.Errorf("plan file is not valid: %w", err)
		}
		return plan, "", nil
	}

	rec, err := withStore(cmd, func(store stores.Store) (*stores.PlanRecord, error) {
		return store.GetPlan(cmd.Context(), planID)
	})
	if err != nil {
		return nil, "", fmt.Errorf("load saved plan: %w", err)
	}
	return rec.Plan, rec.ID, nil
}

func logLevel() string {
	if verbose {
		return "debug"
	}
	return "info"
}
