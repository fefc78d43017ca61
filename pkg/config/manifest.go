package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// manifest is the on-disk shape of an environment manifest. The same
// record is decoded from CUE (json tags) and YAML (yaml tags) before
// being converted into a typed EnvironmentConfig.
type manifest struct {
	Python       string            `json:"python" yaml:"python"`
	CUDA         string            `json:"cuda,omitempty" yaml:"cuda"`
	MPI          string            `json:"mpi,omitempty" yaml:"mpi"`
	Frameworks   map[string]string `json:"frameworks,omitempty" yaml:"frameworks"`
	SparkPackage string            `json:"sparkPackage,omitempty" yaml:"spark_package"`
	Library      manifestLibrary   `json:"library" yaml:"library"`
	BuildFlags   []string          `json:"buildFlags,omitempty" yaml:"build_flags"`
}

type manifestLibrary struct {
	Name string `json:"name" yaml:"name"`
	Ref  string `json:"ref,omitempty" yaml:"ref"`
}

// LoadCUE reads and evaluates a CUE environment manifest. The manifest
// must be concrete: unresolved references are a load error, not a
// planning-time surprise.
func LoadCUE(path string) (*EnvironmentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	cctx := cuecontext.New()
	val := cctx.CompileBytes(data, cue.Filename(path))
	if val.Err() != nil {
		return nil, fmt.Errorf("compiling manifest %s: %w", path, val.Err())
	}

	if err := val.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return nil, fmt.Errorf("validating manifest %s: %w", path, err)
	}

	var m manifest
	if err := val.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}

	return m.toConfig()
}

// LoadYAML reads a YAML environment manifest. Unknown fields are
// rejected so typos surface as load errors.
func LoadYAML(path string) (*EnvironmentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}

	return m.toConfig()
}

// toConfig converts the raw manifest into the typed configuration,
// parsing channel selectors and rejecting unknown frameworks.
func (m *manifest) toConfig() (*EnvironmentConfig, error) {
	mpi := m.MPI
	if mpi == "" {
		mpi = string(MPIOpenMPI)
	}

	cfg := &EnvironmentConfig{
		PythonVersion: m.Python,
		CUDAVersion:   m.CUDA,
		MPIKind:       MPIKind(mpi),
		SparkPackage:  m.SparkPackage,
		Library: LibraryConfig{
			Name: m.Library.Name,
			Ref:  m.Library.Ref,
		},
		BuildFlags: NewFlagSet(m.BuildFlags...),
	}

	// Sorted iteration keeps error reporting stable across runs.
	names := make([]string, 0, len(m.Frameworks))
	for name := range m.Frameworks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fw := Framework(name)
		if !KnownFramework(fw) {
			return nil, fmt.Errorf("unknown framework %q in manifest", name)
		}
		ch, err := ParseChannel(fw, m.Frameworks[name])
		if err != nil {
			return nil, fmt.Errorf("framework %s: %w", name, err)
		}
		cfg.setChannel(fw, ch)
	}

	return cfg, nil
}
