package engine

import (
	"fmt"
	"strings"

	"github.com/gantry-dev/gantry/pkg/config"
	"github.com/gantry-dev/gantry/pkg/rules"
	"github.com/gantry-dev/gantry/pkg/version"
)

// mlFrameworks are the ML frameworks in canonical planning order.
// pyspark is the data-processing framework and is resolved separately,
// before the ML frameworks.
var mlFrameworks = []config.Framework{
	config.FrameworkTensorflow,
	config.FrameworkKeras,
	config.FrameworkPyTorch,
	config.FrameworkTorchvision,
	config.FrameworkMXNet,
}

// frameworkFlags maps frameworks to the build toggle their emitted
// install step contributes to the library build.
var frameworkFlags = map[config.Framework]string{
	config.FrameworkTensorflow: config.FlagTensorflow,
	config.FrameworkPyTorch:    config.FlagPyTorch,
	config.FrameworkMXNet:      config.FlagMXNet,
}

// pipPackages maps frameworks to their stable distribution name.
var pipPackages = map[config.Framework]string{
	config.FrameworkTensorflow:  "tensorflow",
	config.FrameworkKeras:       "keras",
	config.FrameworkPyTorch:     "torch",
	config.FrameworkTorchvision: "torchvision",
	config.FrameworkMXNet:       "mxnet",
	config.FrameworkPySpark:     "pyspark",
}

// nightlyPackages maps frameworks to their nightly distribution name.
// Frameworks without a dedicated nightly package install their regular
// distribution with pre-releases enabled.
var nightlyPackages = map[config.Framework]string{
	config.FrameworkTensorflow:  "tf-nightly",
	config.FrameworkKeras:       "keras-nightly",
	config.FrameworkPyTorch:     "torch",
	config.FrameworkTorchvision: "torchvision",
	config.FrameworkMXNet:       "mxnet",
	config.FrameworkPySpark:     "pyspark",
}

// exampleDirs maps frameworks to the example tree their presence
// triggers shrinking for. torchvision is a companion library with no
// examples of its own.
var exampleDirs = map[config.Framework]string{
	config.FrameworkTensorflow: "examples/tensorflow",
	config.FrameworkKeras:      "examples/keras",
	config.FrameworkPyTorch:    "examples/pytorch",
	config.FrameworkMXNet:      "examples/mxnet",
	config.FrameworkPySpark:    "examples/spark",
}

// Planner resolves an EnvironmentConfig into an ordered InstallPlan.
// Planning is a pure function of the configuration and the rule set:
// no I/O, no shared mutable state, safe for concurrent callers.
type Planner struct {
	rules *rules.RuleSet
}

// NewPlanner creates a planner over the given rule set. A nil rule set
// selects the builtin compatibility table.
func NewPlanner(rs *rules.RuleSet) *Planner {
	if rs == nil {
		rs = rules.Builtin()
	}
	return &Planner{rules: rs}
}

// Plan resolves the configuration into an InstallPlan. All planning
// errors are surfaced before any step is returned; identical
// configurations resolve to byte-identical plans.
func (p *Planner) Plan(cfg *config.EnvironmentConfig) (*InstallPlan, error) {
	if cfg == nil {
		return nil, NewConfigurationError("configuration is nil", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigurationError("configuration failed validation", err)
	}
	if err := p.rules.Validate(); err != nil {
		return nil, NewUnknownFrameworkError("rule set does not match configuration surface", err)
	}
	if err := checkConsistency(cfg); err != nil {
		return nil, err
	}

	// The interpreter major version drives pip binary selection, so it
	// must parse even though framework channels were parsed at load time.
	pySpec, err := version.Parse("python", cfg.PythonVersion)
	if err != nil {
		return nil, NewVersionParseError("python version needed for interpreter selection", err).
			WithSubject("python_version")
	}

	b := &planBuilder{skips: make(map[string]bool)}

	// 1. System toolchain, unconditional.
	sysParams := map[string]string{
		"packages": "build-essential cmake git curl unzip",
	}
	if cfg.CUDAVersion != "" {
		sysParams["cuda"] = cfg.CUDAVersion
	}
	sys := b.add(StepInstallSystemPackage, "system-toolchain", "system toolchain",
		"Install compiler toolchain and fetch utilities", sysParams)

	// 2. Interpreter.
	py := b.add(StepInstallLanguageRuntime, "python-runtime",
		fmt.Sprintf("python %s", cfg.PythonVersion),
		"Install the Python interpreter and pip",
		map[string]string{
			"version": cfg.PythonVersion,
			"pip":     pipBinary(pySpec),
		}, sys)

	// Configuration-wide constraints land right after the interpreter.
	for _, r := range p.rules.Global() {
		b.addConsequence(r, "", py)
	}

	// 3. Communication backend: exactly one of openmpi/mpich/none.
	// MPINone suppresses the backend and its language bindings.
	bindings := ""
	switch cfg.MPIKind {
	case config.MPIOpenMPI:
		be := b.add(StepInstallBackend, "backend-openmpi", "Open MPI backend",
			"Install the Open MPI runtime and development headers",
			map[string]string{
				"implementation": "openmpi",
				"packages":       "openmpi-bin libopenmpi-dev",
				"launcher":       "mpirun --allow-run-as-root -np {np} -H {hosts}",
			}, sys)
		bindings = b.add(StepInstallFramework, "backend-bindings-mpi4py", "mpi4py bindings",
			"Install MPI language bindings", map[string]string{"package": "mpi4py"}, be, py)
	case config.MPIMPICH:
		be := b.add(StepInstallBackend, "backend-mpich", "MPICH backend",
			"Install the MPICH runtime and development headers",
			map[string]string{
				"implementation": "mpich",
				"packages":       "mpich libmpich-dev",
				"launcher":       "mpirun -np {np} -hosts {hosts}",
			}, sys)
		bindings = b.add(StepInstallFramework, "backend-bindings-mpi4py", "mpi4py bindings",
			"Install MPI language bindings", map[string]string{"package": "mpi4py"}, be, py)
	case config.MPINone:
	}

	installed := make(map[config.Framework]string)

	// 4. Data-processing framework. A preview source archive replaces
	// the simple package install with a build-from-source sequence;
	// exactly one of the two paths executes.
	if strings.Contains(strings.ToLower(cfg.SparkPackage), "preview") {
		fetch := b.add(StepPrefetchFixture, "spark-source-fetch", "fetch spark source archive",
			"Download the Spark source archive",
			map[string]string{"archive": cfg.SparkPackage}, py)
		build := b.add(StepInstallFramework, "spark-source-build", "build spark from source",
			"Build Spark from the downloaded source archive",
			map[string]string{"mode": "source", "archive": cfg.SparkPackage}, fetch)
		installed[config.FrameworkPySpark] = b.add(StepInstallFramework, "spark-source-install",
			"install spark build",
			"Install the locally built Spark distribution",
			map[string]string{"mode": "source"}, build, py)
	} else if cfg.PySpark.Requested() {
		params := channelParams(config.FrameworkPySpark, cfg.PySpark)
		if cfg.SparkPackage != "" {
			params["spark_package"] = cfg.SparkPackage
		}
		installed[config.FrameworkPySpark] = b.add(StepInstallFramework, "install-pyspark",
			fmt.Sprintf("pyspark %s", cfg.PySpark),
			"Install pyspark from its package distribution", params, py)
	}
	if id, ok := installed[config.FrameworkPySpark]; ok {
		for _, m := range p.rules.Evaluate(config.FrameworkPySpark, cfg.PySpark) {
			b.addConsequence(m.Rule, config.FrameworkPySpark, id)
		}
	}

	// 5. ML frameworks, one channel each. Rule consequences follow the
	// step they patch immediately.
	flags := make(config.FlagSet)
	for f := range cfg.BuildFlags {
		flags.Add(f)
	}
	if cfg.MPIKind != config.MPINone {
		flags.Add(config.FlagMPI)
	} else {
		flags.Add(config.FlagGloo)
	}

	for _, fw := range mlFrameworks {
		ch := cfg.Channel(fw)
		if !ch.Requested() {
			continue
		}
		id := b.add(StepInstallFramework, "install-"+string(fw),
			fmt.Sprintf("%s %s", fw, ch),
			fmt.Sprintf("Install %s from the %s channel", fw, ch.Kind),
			channelParams(fw, ch), py)
		installed[fw] = id
		if flag := frameworkFlags[fw]; flag != "" {
			flags.Add(flag)
		}
		for _, m := range p.rules.Evaluate(fw, ch) {
			b.addConsequence(m.Rule, fw, id)
		}
	}

	// 6. Fixture prefetch: independent of framework selection.
	for _, fx := range Fixtures() {
		b.add(StepPrefetchFixture, "fetch-fixture-"+fx.Name, "fixture "+fx.Name,
			"Prefetch the "+fx.Name+" dataset",
			map[string]string{"uri": fx.URI, "sha256": fx.Digest})
	}

	// 7. Library under test, parameterized by the flag union.
	libDeps := []string{py}
	if bindings != "" {
		libDeps = append(libDeps, bindings)
	}
	for _, fw := range config.Frameworks() {
		if id, ok := installed[fw]; ok {
			libDeps = append(libDeps, id)
		}
	}
	libParams := map[string]string{
		"package": cfg.Library.Name,
		"flags":   strings.Join(flags.Slice(), " "),
	}
	if cfg.Library.Ref != "" {
		libParams["ref"] = cfg.Library.Ref
	}
	lib := b.add(StepInstallFramework, "install-library", cfg.Library.Name,
		"Build and install the library under test", libParams, libDeps...)

	// 8. Example shrinking: conditioned on framework presence only,
	// never on version. Listed in canonical order for determinism.
	for _, fw := range config.Frameworks() {
		if _, ok := installed[fw]; !ok {
			continue
		}
		dir, ok := exampleDirs[fw]
		if !ok {
			continue
		}
		id := fmt.Sprintf("shrink-%s-examples", fw)
		if b.skips[id] {
			continue
		}
		b.add(StepApplyPatch, id, fmt.Sprintf("shrink %s examples", fw),
			fmt.Sprintf("Reduce %s example workloads to smoke-test size", fw),
			map[string]string{"path": dir, "setting": "epochs", "value": "2"}, lib)
	}

	plan := &InstallPlan{
		Library:    cfg.Library.Name,
		BuildFlags: flags.Slice(),
		Steps:      b.steps,
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if _, err := BuildGraph(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// checkConsistency rejects contradictory configurations before any
// step is produced.
func checkConsistency(cfg *config.EnvironmentConfig) error {
	if cfg.MPIKind == config.MPINone && cfg.BuildFlags.Has(config.FlagMPI) {
		return NewConfigurationError("MPI build flag requested but backend kind is none", nil).
			WithSubject(config.FlagMPI)
	}
	if cfg.Keras.Requested() && !cfg.Tensorflow.Requested() {
		return NewConfigurationError("keras requested without tensorflow", nil).
			WithSubject(string(config.FrameworkKeras))
	}
	if cfg.Torchvision.Requested() && !cfg.PyTorch.Requested() {
		return NewConfigurationError("torchvision requested without pytorch", nil).
			WithSubject(string(config.FrameworkTorchvision))
	}
	return nil
}

// channelParams renders the install parameters for a framework channel.
// Channel selection is mutually exclusive: a framework installs from
// exactly one channel per plan.
func channelParams(fw config.Framework, ch config.Channel) map[string]string {
	switch ch.Kind {
	case config.ChannelNightly:
		return map[string]string{
			"channel":    "nightly",
			"package":    nightlyPackages[fw],
			"prerelease": "true",
		}
	default:
		return map[string]string{
			"channel": "stable",
			"package": pipPackages[fw],
			"version": ch.Spec.Raw,
		}
	}
}

// pipBinary selects the pip executable for the interpreter major version.
func pipBinary(py *version.Spec) string {
	if py.Major() >= 3 {
		return "pip3"
	}
	return "pip"
}

// planBuilder assembles steps with dense ordinals and collects skip
// targets produced by rule consequences.
type planBuilder struct {
	steps []InstallStep
	skips map[string]bool
}

// add appends a step and returns its ID.
func (b *planBuilder) add(kind StepKind, id, name, desc string, params map[string]string, deps ...string) string {
	b.steps = append(b.steps, InstallStep{
		Ordinal:     len(b.steps),
		ID:          id,
		Kind:        kind,
		Name:        name,
		Description: desc,
		Parameters:  params,
		DependsOn:   deps,
	})
	return id
}

// addConsequence appends the step a matched rule produces, immediately
// after the step it patches. Skip consequences emit no step and instead
// suppress the named target later in the plan.
func (b *planBuilder) addConsequence(r rules.Rule, fw config.Framework, afterID string) {
	suffix := strings.ToLower(r.Consequence.Package)
	if fw != "" {
		suffix = fmt.Sprintf("%s-%s", suffix, fw)
	}

	switch r.Consequence.Kind {
	case rules.ConsequencePin:
		b.add(StepInstallFramework, "pin-"+suffix,
			fmt.Sprintf("pin %s%s", r.Consequence.Package, r.Consequence.Constraint),
			r.Reason,
			map[string]string{
				"package":    r.Consequence.Package,
				"constraint": r.Consequence.Constraint,
				"rule":       r.ID,
			}, afterID)
	case rules.ConsequenceExclude:
		b.add(StepInstallFramework, "constrain-"+suffix,
			fmt.Sprintf("constrain %s%s", r.Consequence.Package, r.Consequence.Constraint),
			r.Reason,
			map[string]string{
				"package":    r.Consequence.Package,
				"constraint": r.Consequence.Constraint,
				"rule":       r.ID,
			}, afterID)
	case rules.ConsequencePatch:
		b.add(StepApplyPatch, fmt.Sprintf("patch-%s-%s", r.Consequence.Patch, fw),
			fmt.Sprintf("patch %s", fw),
			r.Reason,
			map[string]string{"patch": r.Consequence.Patch, "rule": r.ID}, afterID)
	case rules.ConsequenceSkip:
		b.skips[r.Consequence.Target] = true
	}
}
