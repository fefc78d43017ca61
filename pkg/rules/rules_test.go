package rules

import (
	"errors"
	"testing"

	"github.com/gantry-dev/gantry/pkg/config"
	"github.com/gantry-dev/gantry/pkg/version"
)

func stable(t *testing.T, fw config.Framework, v string) config.Channel {
	t.Helper()
	ch, err := config.ParseChannel(fw, v)
	if err != nil {
		t.Fatalf("ParseChannel(%s, %s): %v", fw, v, err)
	}
	return ch
}

func TestBuiltinLegacyTensorflowPin(t *testing.T) {
	rs := Builtin()

	tests := []struct {
		version string
		want    bool
	}{
		{"1.15.0", true},
		{"2.0.0", true},
		{"2.4.1", true},
		{"2.5.0", false},
		{"2.11.0", false},
	}

	for _, tt := range tests {
		matches := rs.Evaluate(config.FrameworkTensorflow, stable(t, config.FrameworkTensorflow, tt.version))
		fired := false
		for _, m := range matches {
			if m.Rule.ID == "h5py-legacy-tensorflow" {
				fired = true
				if m.Rule.Consequence.Package != "h5py" || m.Rule.Consequence.Constraint != "<3" {
					t.Errorf("unexpected consequence: %+v", m.Rule.Consequence)
				}
			}
		}
		if fired != tt.want {
			t.Errorf("tensorflow %s: h5py rule fired=%v, want %v", tt.version, fired, tt.want)
		}
	}
}

func TestNightlyMatchesNoVersionRule(t *testing.T) {
	rs := Builtin()
	matches := rs.Evaluate(config.FrameworkTensorflow, config.Nightly())
	for _, m := range matches {
		if m.Rule.When != nil {
			t.Errorf("version-conditioned rule %s fired for nightly channel", m.Rule.ID)
		}
	}
}

func TestPresenceConditionedKerasRule(t *testing.T) {
	rs := Builtin()

	// Presence-conditioned rules fire on any channel, including nightly.
	for _, ch := range []config.Channel{stable(t, config.FrameworkKeras, "2.3.1"), config.Nightly()} {
		matches := rs.Evaluate(config.FrameworkKeras, ch)
		if len(matches) != 1 || matches[0].Rule.ID != "pandas-keras-cap" {
			t.Errorf("keras channel %s: matches = %+v, want pandas cap", ch, matches)
		}
	}

	if got := rs.Evaluate(config.FrameworkKeras, config.NoChannel()); got != nil {
		t.Errorf("unrequested keras matched rules: %+v", got)
	}
}

func TestEarlyTorchvisionDowngrade(t *testing.T) {
	rs := Builtin()

	matches := rs.Evaluate(config.FrameworkTorchvision, stable(t, config.FrameworkTorchvision, "0.4.1"))
	if len(matches) != 1 || matches[0].Rule.Consequence.Package != "Pillow" {
		t.Fatalf("torchvision 0.4.1: matches = %+v, want Pillow pin", matches)
	}

	if got := rs.Evaluate(config.FrameworkTorchvision, stable(t, config.FrameworkTorchvision, "0.9.1")); got != nil {
		t.Errorf("torchvision 0.9.1 matched: %+v", got)
	}
}

func TestGlobalRules(t *testing.T) {
	rs := Builtin()
	global := rs.Global()
	if len(global) != 1 || global[0].ID != "numpy-broken-release" {
		t.Fatalf("Global() = %+v, want the numpy exclusion", global)
	}
	if global[0].Consequence.Kind != ConsequenceExclude {
		t.Errorf("numpy rule kind = %s, want exclude", global[0].Consequence.Kind)
	}
}

func TestValidateUnknownFramework(t *testing.T) {
	rs := New(Rule{ID: "bogus", Framework: config.Framework("caffe")})
	err := rs.Validate()
	if err == nil {
		t.Fatal("expected unknown framework error")
	}
	var ufe *UnknownFrameworkError
	if !errors.As(err, &ufe) || ufe.Framework != "caffe" {
		t.Errorf("error = %v, want UnknownFrameworkError for caffe", err)
	}
}

func TestDeclarationOrderPreserved(t *testing.T) {
	r1 := Rule{ID: "first", Framework: config.FrameworkPyTorch}
	below := version.Below("2.0")
	r2 := Rule{ID: "second", Framework: config.FrameworkPyTorch, When: &below}
	rs := New(r1, r2)

	matches := rs.Evaluate(config.FrameworkPyTorch, stable(t, config.FrameworkPyTorch, "1.8.1"))
	if len(matches) != 2 || matches[0].Rule.ID != "first" || matches[1].Rule.ID != "second" {
		t.Errorf("matches out of order: %+v", matches)
	}
}
