package rules

import (
	"github.com/gantry-dev/gantry/pkg/config"
	"github.com/gantry-dev/gantry/pkg/version"
)

// Builtin returns the compatibility rules derived from observed
// upstream incompatibilities. The table is static and read-only.
func Builtin() *RuleSet {
	legacyTensorflow := version.Union(version.MajorIs(1), version.Between("2.0", "2.4"))
	earlyTorchvision := version.Between("0.1", "0.4")

	return New(
		Rule{
			ID:        "h5py-legacy-tensorflow",
			Framework: config.FrameworkTensorflow,
			When:      &legacyTensorflow,
			Consequence: Consequence{
				Kind:       ConsequencePin,
				Package:    "h5py",
				Constraint: "<3",
			},
			Reason: "h5py 3.x cannot read models saved by TensorFlow 1.x and 2.0-2.4",
		},
		Rule{
			ID:        "numpy-broken-release",
			Framework: Wildcard,
			Consequence: Consequence{
				Kind:       ConsequenceExclude,
				Package:    "numpy",
				Constraint: "!=1.19.4",
			},
			Reason: "numpy 1.19.4 fails its own sanity check at import time",
		},
		Rule{
			ID:        "pandas-keras-cap",
			Framework: config.FrameworkKeras,
			Consequence: Consequence{
				Kind:       ConsequencePin,
				Package:    "pandas",
				Constraint: "<1.1",
			},
			Reason: "keras data adapters rely on DataFrame iteration removed in pandas 1.1",
		},
		Rule{
			ID:        "pillow-early-torchvision",
			Framework: config.FrameworkTorchvision,
			When:      &earlyTorchvision,
			Consequence: Consequence{
				Kind:       ConsequencePin,
				Package:    "Pillow",
				Constraint: "<7",
			},
			Reason: "torchvision below 0.5 imports PILLOW_VERSION, removed in Pillow 7",
		},
	)
}
