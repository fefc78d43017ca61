package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gantry-dev/gantry/pkg/engine"
	"github.com/gantry-dev/gantry/pkg/policy"
	"github.com/gantry-dev/gantry/pkg/stores"
)

func newPlanCommand() *cobra.Command {
	var (
		outFile string
		dotFile string
		save    bool
		enforce bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Resolve the configuration into an install plan",
		Long: `Resolve the environment configuration into an ordered install plan.

Resolution validates the configuration, applies the compatibility
rules, and emits every provisioning step with its dependencies. The
plan is deterministic: the same configuration always produces the
same bytes.`,
		Example: `  # Resolve from environment variables and write plan.json
  gantry plan --out plan.json

  # Resolve a CUE manifest with a DOT graph of the step dependencies
  gantry plan -c env.cue --out plan.json --dot plan.dot

  # Resolve and persist the plan in the history database
  gantry plan -c env.yaml --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			plan, err := engine.NewPlanner(nil).Plan(cfg)
			if err != nil {
				return fmt.Errorf("resolve plan: %w", err)
			}
			log.Info().
				Str("library", plan.Library).
				Int("steps", len(plan.Steps)).
				Strs("build_flags", plan.BuildFlags).
				Msg("plan resolved")

			if err := gatePlan(cmd, plan, enforce); err != nil {
				return err
			}

			body, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return fmt.Errorf("encode plan: %w", err)
			}
			if err := os.WriteFile(outFile, append(body, '\n'), 0o644); err != nil {
				return fmt.Errorf("write plan: %w", err)
			}

			if dotFile != "" {
				if err := os.WriteFile(dotFile, []byte(engine.ToDOT(plan)), 0o644); err != nil {
					return fmt.Errorf("write DOT graph: %w", err)
				}
			}

			if save {
				rec, err := withStore(cmd, func(store stores.Store) (*stores.PlanRecord, error) {
					return store.SavePlan(cmd.Context(), plan)
				})
				if err != nil {
					return err
				}
				log.Info().Str("plan_id", rec.ID).Str("digest", rec.Digest).Msg("plan saved")
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "plan.json", "output plan file path")
	cmd.Flags().StringVar(&dotFile, "dot", "", "output DOT graph file (optional)")
	cmd.Flags().BoolVar(&save, "save", false, "persist the plan in the history database")
	cmd.Flags().BoolVar(&enforce, "enforce", false, "reject the plan on policy violations")

	return cmd
}

// gatePlan evaluates the built-in policies and prints the findings.
// Under --enforce a blocked plan aborts the command.
func gatePlan(cmd *cobra.Command, plan *engine.InstallPlan, enforce bool) error {
	mode := policy.ModeAdvisory
	if enforce {
		mode = policy.ModeEnforcing
	}
	eng, err := policy.NewEngine(log.Logger, policy.WithMode(mode), policy.WithEnvironment(environment))
	if err != nil {
		return fmt.Errorf("create policy engine: %w", err)
	}
	decision, err := eng.EvaluatePlan(cmd.Context(), plan)
	if err != nil {
		return fmt.Errorf("evaluate policies: %w", err)
	}

	for _, v := range decision.Violations {
		log.Warn().
			Str("policy", v.Policy).
			Str("step", v.Step).
			Str("severity", string(v.Severity)).
			Msg(v.Message)
	}
	if !decision.Allowed {
		return fmt.Errorf("plan rejected by policy: %d violation(s)", len(decision.Violations))
	}
	return nil
}

// withStore opens the history database, runs fn, and closes it.
func withStore[T any](cmd *cobra.Command, fn func(stores.Store) (T, error)) (T, error) {
	var zero T
	store, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
	if err != nil {
		return zero, err
	}
	ctx := cmd.Context()
	if err := store.Init(ctx); err != nil {
		return zero, fmt.Errorf("open history database: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return zero, fmt.Errorf("migrate history database: %w", err)
	}
	return fn(store)
}
