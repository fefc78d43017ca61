package config

import (
	"fmt"
	"os"
	"strings"
)

// envPrefix namespaces all provisioning variables.
const envPrefix = "GANTRY_"

// envChannelKeys maps frameworks to their environment variable suffix.
var envChannelKeys = map[Framework]string{
	FrameworkTensorflow:  "TENSORFLOW",
	FrameworkKeras:       "KERAS",
	FrameworkPyTorch:     "PYTORCH",
	FrameworkTorchvision: "TORCHVISION",
	FrameworkMXNet:       "MXNET",
	FrameworkPySpark:     "PYSPARK",
}

// FromEnv constructs the configuration from GANTRY_* environment
// variables, the surface the source build system uses.
func FromEnv() (*EnvironmentConfig, error) {
	return fromLookup(os.LookupEnv)
}

// fromLookup is the testable core of FromEnv.
func fromLookup(lookup func(string) (string, bool)) (*EnvironmentConfig, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(envPrefix + key); ok {
			return v
		}
		return fallback
	}

	cfg := &EnvironmentConfig{
		PythonVersion: get("PYTHON_VERSION", ""),
		CUDAVersion:   get("CUDA_VERSION", ""),
		MPIKind:       MPIKind(get("MPI_KIND", string(MPIOpenMPI))),
		SparkPackage:  get("SPARK_PACKAGE", ""),
		Library: LibraryConfig{
			Name: get("LIBRARY_NAME", ""),
			Ref:  get("LIBRARY_REF", ""),
		},
		BuildFlags: parseFlags(get("BUILD_FLAGS", "")),
	}

	for _, fw := range Frameworks() {
		raw := get(envChannelKeys[fw], "")
		ch, err := ParseChannel(fw, raw)
		if err != nil {
			return nil, fmt.Errorf("reading %s%s: %w", envPrefix, envChannelKeys[fw], err)
		}
		cfg.setChannel(fw, ch)
	}

	return cfg, nil
}

// setChannel assigns the channel for a framework during construction.
func (c *EnvironmentConfig) setChannel(fw Framework, ch Channel) {
	switch fw {
	case FrameworkTensorflow:
		c.Tensorflow = ch
	case FrameworkKeras:
		c.Keras = ch
	case FrameworkPyTorch:
		c.PyTorch = ch
	case FrameworkTorchvision:
		c.Torchvision = ch
	case FrameworkMXNet:
		c.MXNet = ch
	case FrameworkPySpark:
		c.PySpark = ch
	}
}

// parseFlags splits a comma- or space-separated toggle list.
func parseFlags(raw string) FlagSet {
	fs := make(FlagSet)
	for _, f := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	}) {
		fs.Add(strings.TrimSpace(f))
	}
	return fs
}
