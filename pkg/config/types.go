// Package config holds the typed provisioning configuration for a test
// environment and the loaders that construct it from environment
// variables or manifest files (CUE, YAML). The configuration is built
// once at process start and never mutated afterwards.
package config

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/gantry-dev/gantry/pkg/version"
)

// validate is the shared validator instance for configuration structs.
var validate = validator.New(validator.WithRequiredStructEnabled())

// MPIKind selects the message-passing implementation used for
// distributed coordination. Exactly one kind is active per environment.
type MPIKind string

const (
	// MPIOpenMPI selects the Open MPI implementation.
	MPIOpenMPI MPIKind = "openmpi"

	// MPIMPICH selects the MPICH implementation.
	MPIMPICH MPIKind = "mpich"

	// MPINone disables the MPI backend entirely. All backend-dependent
	// steps (language bindings, launcher setup) are suppressed.
	MPINone MPIKind = "none"
)

// Framework identifies an ML or data-processing framework the
// environment can carry.
type Framework string

const (
	FrameworkTensorflow  Framework = "tensorflow"
	FrameworkKeras       Framework = "keras"
	FrameworkPyTorch     Framework = "pytorch"
	FrameworkTorchvision Framework = "torchvision"
	FrameworkMXNet       Framework = "mxnet"
	FrameworkPySpark     Framework = "pyspark"
)

// Frameworks returns all known frameworks in their canonical planning
// order. The order is fixed so resolved plans are deterministic.
func Frameworks() []Framework {
	return []Framework{
		FrameworkTensorflow,
		FrameworkKeras,
		FrameworkPyTorch,
		FrameworkTorchvision,
		FrameworkMXNet,
		FrameworkPySpark,
	}
}

// KnownFramework reports whether name is a framework this configuration
// surface understands.
func KnownFramework(name Framework) bool {
	for _, fw := range Frameworks() {
		if fw == name {
			return true
		}
	}
	return false
}

// ChannelKind distinguishes the install channels a framework can come from.
type ChannelKind string

const (
	// ChannelNone means the framework is not requested.
	ChannelNone ChannelKind = "none"

	// ChannelStable pins a concrete release version.
	ChannelStable ChannelKind = "stable"

	// ChannelNightly tracks the framework's nightly/development build.
	ChannelNightly ChannelKind = "nightly"
)

// Channel is the tagged channel selector for one framework: not
// requested, a pinned release, or the nightly build. It replaces the
// magic "nightly" string of the original build arguments.
type Channel struct {
	Kind ChannelKind   `json:"kind"`
	Spec *version.Spec `json:"spec,omitempty"`
}

// NoChannel returns the "not requested" channel.
func NoChannel() Channel {
	return Channel{Kind: ChannelNone}
}

// Nightly returns the nightly channel.
func Nightly() Channel {
	return Channel{Kind: ChannelNightly}
}

// Stable returns a pinned-release channel for the given spec.
func Stable(spec *version.Spec) Channel {
	return Channel{Kind: ChannelStable, Spec: spec}
}

// ParseChannel interprets a raw channel value for a framework:
// empty or "none" means not requested, "nightly" selects the nightly
// build, anything else must parse as a version.
func ParseChannel(fw Framework, raw string) (Channel, error) {
	switch raw {
	case "", "none":
		return NoChannel(), nil
	case "nightly":
		return Nightly(), nil
	}
	spec, err := version.Parse(string(fw), raw)
	if err != nil {
		return Channel{}, err
	}
	return Stable(spec), nil
}

// Requested reports whether the framework is part of the environment.
func (c Channel) Requested() bool {
	return c.Kind != ChannelNone
}

// String renders the channel for logs and step descriptions.
func (c Channel) String() string {
	switch c.Kind {
	case ChannelStable:
		return c.Spec.Raw
	case ChannelNightly:
		return "nightly"
	default:
		return "none"
	}
}

// Backend-enablement toggles for the library-under-test build.
const (
	FlagTensorflow = "WITH_TENSORFLOW"
	FlagPyTorch    = "WITH_PYTORCH"
	FlagMXNet      = "WITH_MXNET"
	FlagMPI        = "WITH_MPI"
	FlagGloo       = "WITH_GLOO"
)

// FlagSet is a set of build-flag toggles.
type FlagSet map[string]bool

// NewFlagSet builds a set from the given flags.
func NewFlagSet(flags ...string) FlagSet {
	fs := make(FlagSet, len(flags))
	for _, f := range flags {
		fs[f] = true
	}
	return fs
}

// Add inserts a flag into the set.
func (fs FlagSet) Add(flag string) {
	fs[flag] = true
}

// Has reports whether the flag is set.
func (fs FlagSet) Has(flag string) bool {
	return fs[flag]
}

// Slice returns the flags sorted for deterministic output.
func (fs FlagSet) Slice() []string {
	out := make([]string, 0, len(fs))
	for f, on := range fs {
		if on {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// LibraryConfig names the distributed training library under test.
type LibraryConfig struct {
	// Name is the package name of the library.
	Name string `json:"name" validate:"required"`

	// Ref is an optional source reference (path, VCS ref or sdist).
	Ref string `json:"ref,omitempty"`
}

// EnvironmentConfig is the immutable provisioning configuration.
// It is constructed once from external input and only read afterwards.
type EnvironmentConfig struct {
	// PythonVersion is the interpreter version to install.
	PythonVersion string `json:"python_version" validate:"required"`

	// CUDAVersion selects a GPU toolchain; empty means CPU-only.
	CUDAVersion string `json:"cuda_version,omitempty"`

	// MPIKind selects the communication backend.
	MPIKind MPIKind `json:"mpi_kind" validate:"required,oneof=openmpi mpich none"`

	// Channel selectors, one per framework.
	Tensorflow  Channel `json:"tensorflow"`
	Keras       Channel `json:"keras"`
	PyTorch     Channel `json:"pytorch"`
	Torchvision Channel `json:"torchvision"`
	MXNet       Channel `json:"mxnet"`
	PySpark     Channel `json:"pyspark"`

	// SparkPackage optionally names a Spark source archive. An
	// identifier containing "preview" switches the data-processing
	// install to a build-from-source sequence.
	SparkPackage string `json:"spark_package,omitempty"`

	// Library is the library under test.
	Library LibraryConfig `json:"library"`

	// BuildFlags are explicitly requested backend-enablement toggles.
	// Frameworks contribute their own toggles when planned.
	BuildFlags FlagSet `json:"build_flags,omitempty"`
}

// Channel returns the channel selector for the given framework.
func (c *EnvironmentConfig) Channel(fw Framework) Channel {
	switch fw {
	case FrameworkTensorflow:
		return c.Tensorflow
	case FrameworkKeras:
		return c.Keras
	case FrameworkPyTorch:
		return c.PyTorch
	case FrameworkTorchvision:
		return c.Torchvision
	case FrameworkMXNet:
		return c.MXNet
	case FrameworkPySpark:
		return c.PySpark
	}
	return NoChannel()
}

// Validate checks structural invariants of the configuration.
func (c *EnvironmentConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
