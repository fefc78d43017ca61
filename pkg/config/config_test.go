package config

import (
	"os"
	"path/filepath"
	"testing"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"GANTRY_PYTHON_VERSION": "3.8",
		"GANTRY_MPI_KIND":       "mpich",
		"GANTRY_TENSORFLOW":     "1.15.0",
		"GANTRY_KERAS":          "2.3.1",
		"GANTRY_PYTORCH":        "nightly",
		"GANTRY_LIBRARY_NAME":   "distrain",
		"GANTRY_BUILD_FLAGS":    "WITH_GLOO,WITH_MPI",
	}))
	if err != nil {
		t.Fatalf("fromLookup returned error: %v", err)
	}

	if cfg.MPIKind != MPIMPICH {
		t.Errorf("MPIKind = %s, want mpich", cfg.MPIKind)
	}
	if cfg.Tensorflow.Kind != ChannelStable || cfg.Tensorflow.Spec.Raw != "1.15.0" {
		t.Errorf("tensorflow channel = %+v, want stable 1.15.0", cfg.Tensorflow)
	}
	if cfg.PyTorch.Kind != ChannelNightly {
		t.Errorf("pytorch channel = %s, want nightly", cfg.PyTorch.Kind)
	}
	if cfg.MXNet.Requested() {
		t.Error("mxnet should not be requested")
	}
	if !cfg.BuildFlags.Has(FlagGloo) || !cfg.BuildFlags.Has(FlagMPI) {
		t.Errorf("build flags = %v, want gloo and mpi", cfg.BuildFlags.Slice())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate returned error: %v", err)
	}
}

func TestFromEnvDefaultsToOpenMPI(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"GANTRY_PYTHON_VERSION": "3.9",
		"GANTRY_LIBRARY_NAME":   "distrain",
	}))
	if err != nil {
		t.Fatalf("fromLookup returned error: %v", err)
	}
	if cfg.MPIKind != MPIOpenMPI {
		t.Errorf("MPIKind = %s, want openmpi default", cfg.MPIKind)
	}
}

func TestFromEnvBadVersion(t *testing.T) {
	_, err := fromLookup(lookupFrom(map[string]string{
		"GANTRY_PYTHON_VERSION": "3.8",
		"GANTRY_TENSORFLOW":     "not-a-version",
		"GANTRY_LIBRARY_NAME":   "distrain",
	}))
	if err == nil {
		t.Fatal("expected version parse error")
	}
}

func TestValidateRejectsBadMPIKind(t *testing.T) {
	cfg := &EnvironmentConfig{
		PythonVersion: "3.8",
		MPIKind:       MPIKind("smpi"),
		Library:       LibraryConfig{Name: "distrain"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown mpi kind")
	}
}

func TestParseChannelVariants(t *testing.T) {
	tests := []struct {
		raw  string
		kind ChannelKind
	}{
		{"", ChannelNone},
		{"none", ChannelNone},
		{"nightly", ChannelNightly},
		{"2.4.1", ChannelStable},
	}
	for _, tt := range tests {
		ch, err := ParseChannel(FrameworkTensorflow, tt.raw)
		if err != nil {
			t.Fatalf("ParseChannel(%q) returned error: %v", tt.raw, err)
		}
		if ch.Kind != tt.kind {
			t.Errorf("ParseChannel(%q).Kind = %s, want %s", tt.raw, ch.Kind, tt.kind)
		}
	}
}

func TestLoadYAML(t *testing.T) {
	doc := `
python: "3.8"
mpi: openmpi
frameworks:
  tensorflow: "2.4.1"
  torchvision: "0.4.1"
  pyspark: "3.0.1"
spark_package: spark-3.1.0-preview2-bin-hadoop3.2
library:
  name: distrain
  ref: v0.9.0
build_flags: [WITH_GLOO]
`
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML returned error: %v", err)
	}
	if cfg.Tensorflow.Spec.Raw != "2.4.1" {
		t.Errorf("tensorflow = %s, want 2.4.1", cfg.Tensorflow)
	}
	if cfg.SparkPackage != "spark-3.1.0-preview2-bin-hadoop3.2" {
		t.Errorf("spark package = %s", cfg.SparkPackage)
	}
	if cfg.Library.Ref != "v0.9.0" {
		t.Errorf("library ref = %s, want v0.9.0", cfg.Library.Ref)
	}
}

func TestLoadYAMLUnknownFramework(t *testing.T) {
	doc := `
python: "3.8"
frameworks:
  caffe: "1.0"
library:
  name: distrain
`
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadYAML(path); err == nil {
		t.Error("expected unknown framework error")
	}
}

func TestLoadCUE(t *testing.T) {
	doc := `
python: "3.9"
mpi:    "mpich"
frameworks: {
	pytorch:     "1.8.1+cu101"
	torchvision: "0.9.1"
}
library: {
	name: "distrain"
}
`
	path := filepath.Join(t.TempDir(), "env.cue")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadCUE(path)
	if err != nil {
		t.Fatalf("LoadCUE returned error: %v", err)
	}
	if cfg.MPIKind != MPIMPICH {
		t.Errorf("MPIKind = %s, want mpich", cfg.MPIKind)
	}
	if cfg.PyTorch.Spec.Raw != "1.8.1+cu101" {
		t.Errorf("pytorch = %s, want raw suffix preserved", cfg.PyTorch)
	}
}

func TestFlagSetSliceSorted(t *testing.T) {
	fs := NewFlagSet(FlagTensorflow, FlagGloo, FlagMPI)
	got := fs.Slice()
	want := []string{FlagGloo, FlagMPI, FlagTensorflow}
	if len(got) != len(want) {
		t.Fatalf("Slice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Slice() = %v, want %v", got, want)
		}
	}
}
