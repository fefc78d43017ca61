package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gantry-dev/gantry/pkg/config"
	"github.com/gantry-dev/gantry/pkg/engine"
	"github.com/gantry-dev/gantry/pkg/telemetry"
)

// fakeRunner records every command and fails on demand.
type fakeRunner struct {
	commands []Command
	failOn   string
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) (string, error) {
	f.commands = append(f.commands, cmd)
	joined := cmd.Name + " " + strings.Join(cmd.Args, " ")
	if f.failOn != "" && strings.Contains(joined, f.failOn) {
		return "simulated failure output", errors.New("exit status 1")
	}
	return "ok", nil
}

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatal(err)
	}
	return logger
}

func resolvedPlan(t *testing.T, mutate func(*config.EnvironmentConfig)) *engine.InstallPlan {
	t.Helper()
	cfg := &config.EnvironmentConfig{
		PythonVersion: "3.8",
		MPIKind:       config.MPIOpenMPI,
		Library:       config.LibraryConfig{Name: "distrain"},
		BuildFlags:    config.NewFlagSet(),
	}
	if mutate != nil {
		mutate(cfg)
	}
	plan, err := engine.NewPlanner(nil).Plan(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return plan
}

func TestExecuteSuccessfulRun(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewLocalExecutor(runner, testLogger(t))

	plan := resolvedPlan(t, func(cfg *config.EnvironmentConfig) {
		ch, err := config.ParseChannel(config.FrameworkTensorflow, "2.5.0")
		if err != nil {
			t.Fatal(err)
		}
		cfg.Tensorflow = ch
	})

	run, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != engine.RunStatusSucceeded {
		t.Fatalf("status = %s, want succeeded", run.Status)
	}
	if run.ID == "" {
		t.Error("run has no ID")
	}
	if len(run.Results) != len(plan.Steps) {
		t.Errorf("results = %d, want %d", len(run.Results), len(plan.Steps))
	}
	for _, r := range run.Results {
		if r.Status != engine.RunStatusSucceeded {
			t.Errorf("step %s status = %s", r.StepID, r.Status)
		}
	}

	// The framework install must pin the requested version through
	// the interpreter's pip binary.
	found := false
	for _, cmd := range runner.commands {
		if cmd.Name == "pip3" && strings.Contains(strings.Join(cmd.Args, " "), "tensorflow==2.5.0") {
			found = true
		}
	}
	if !found {
		t.Error("no pip3 install of tensorflow==2.5.0 recorded")
	}
}

func TestExecuteHaltsOnFirstFailure(t *testing.T) {
	runner := &fakeRunner{failOn: "openmpi-bin"}
	exec := NewLocalExecutor(runner, testLogger(t))

	plan := resolvedPlan(t, nil)
	run, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != engine.RunStatusFailed {
		t.Fatalf("status = %s, want failed", run.Status)
	}

	failedAt := -1
	for i, r := range run.Results {
		if r.StepID != "backend-openmpi" {
			continue
		}
		failedAt = i
		if r.Status != engine.RunStatusFailed {
			t.Errorf("backend step status = %s, want failed", r.Status)
		}
		if r.Error == "" || r.Output == "" {
			t.Error("failed step is missing error or output")
		}
	}
	if failedAt < 0 {
		t.Fatal("backend-openmpi result missing")
	}
	for i, r := range run.Results {
		if i > failedAt && r.Status != engine.RunStatusSkipped {
			t.Errorf("step %s after failure has status %s, want skipped", r.StepID, r.Status)
		}
		if i < failedAt && r.Status != engine.RunStatusSucceeded {
			t.Errorf("step %s before failure has status %s, want succeeded", r.StepID, r.Status)
		}
	}
}

func TestExecuteNightlyUsesPreRelease(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewLocalExecutor(runner, testLogger(t))

	plan := resolvedPlan(t, func(cfg *config.EnvironmentConfig) {
		cfg.Tensorflow = config.Nightly()
	})
	if _, err := exec.Execute(context.Background(), plan); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, cmd := range runner.commands {
		joined := strings.Join(cmd.Args, " ")
		if strings.Contains(joined, "--pre") && strings.Contains(joined, "tf-nightly") {
			found = true
		}
	}
	if !found {
		t.Error("nightly install did not use --pre tf-nightly")
	}
}

func TestExecuteLibraryBuildFlagsInEnvironment(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewLocalExecutor(runner, testLogger(t))

	plan := resolvedPlan(t, func(cfg *config.EnvironmentConfig) {
		ch, err := config.ParseChannel(config.FrameworkPyTorch, "1.8.1")
		if err != nil {
			t.Fatal(err)
		}
		cfg.PyTorch = ch
	})
	if _, err := exec.Execute(context.Background(), plan); err != nil {
		t.Fatal(err)
	}

	var libCmd *Command
	for i, cmd := range runner.commands {
		if strings.Contains(strings.Join(cmd.Args, " "), "distrain") {
			libCmd = &runner.commands[i]
		}
	}
	if libCmd == nil {
		t.Fatal("library install command not recorded")
	}
	env := strings.Join(libCmd.Env, " ")
	if !strings.Contains(env, "WITH_PYTORCH=1") || !strings.Contains(env, "WITH_MPI=1") {
		t.Errorf("library env = %q, want WITH_PYTORCH=1 and WITH_MPI=1", env)
	}
}

func TestExecuteFixtureVerification(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewLocalExecutor(runner, testLogger(t))

	plan := resolvedPlan(t, nil)
	if _, err := exec.Execute(context.Background(), plan); err != nil {
		t.Fatal(err)
	}

	verified := false
	for _, cmd := range runner.commands {
		if cmd.Name == "bash" && strings.Contains(strings.Join(cmd.Args, " "), "sha256sum -c") {
			verified = true
		}
	}
	if !verified {
		t.Error("fixture downloads were not checksum-verified")
	}
}

func TestCommandsForPatchStep(t *testing.T) {
	step := &engine.InstallStep{
		ID:   "shrink-tensorflow-examples",
		Kind: engine.StepApplyPatch,
		Parameters: map[string]string{
			"path":    "examples/tensorflow",
			"setting": "epochs",
			"value":   "2",
		},
	}
	cmds, err := commandsFor(step, "pip3")
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 {
		t.Fatalf("commands = %d, want 1", len(cmds))
	}
	joined := strings.Join(cmds[0].Args, " ")
	if !strings.Contains(joined, "epochs=2") || !strings.Contains(joined, "examples/tensorflow") {
		t.Errorf("patch command = %q", joined)
	}
}

func TestCommandsForRejectsIncompleteSteps(t *testing.T) {
	tests := []engine.InstallStep{
		{ID: "no-packages", Kind: engine.StepInstallSystemPackage},
		{ID: "no-version", Kind: engine.StepInstallLanguageRuntime},
		{ID: "no-package", Kind: engine.StepInstallFramework},
		{ID: "no-uri", Kind: engine.StepPrefetchFixture},
	}
	for _, step := range tests {
		t.Run(step.ID, func(t *testing.T) {
			if _, err := commandsFor(&step, "pip3"); err == nil {
				t.Error("incomplete step accepted")
			}
		})
	}
}
