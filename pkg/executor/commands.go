package executor

import (
	"fmt"
	"strings"

	"github.com/gantry-dev/gantry/pkg/engine"
)

// sparkArchiveBase is where source archives for the data-processing
// framework are fetched from.
const sparkArchiveBase = "https://archive.apache.org/dist/spark"

// commandsFor translates one install step into the commands that
// realize it. The pip binary comes from the interpreter step so the
// whole plan installs into one interpreter.
func commandsFor(step *engine.InstallStep, pip string) ([]Command, error) {
	switch step.Kind {
	case engine.StepInstallSystemPackage:
		return systemPackageCommands(step)
	case engine.StepInstallLanguageRuntime:
		return runtimeCommands(step)
	case engine.StepInstallBackend:
		return backendCommands(step)
	case engine.StepInstallFramework:
		return frameworkCommands(step, pip)
	case engine.StepApplyPatch:
		return patchCommands(step)
	case engine.StepPrefetchFixture:
		return prefetchCommands(step)
	default:
		return nil, fmt.Errorf("step %s has unknown kind %s", step.ID, step.Kind)
	}
}

func systemPackageCommands(step *engine.InstallStep) ([]Command, error) {
	packages := strings.Fields(step.Parameters["packages"])
	if len(packages) == 0 {
		return nil, fmt.Errorf("step %s lists no packages", step.ID)
	}
	return []Command{
		{Name: "apt-get", Args: []string{"update"}},
		{Name: "apt-get", Args: append([]string{"install", "-y"}, packages...)},
	}, nil
}

func runtimeCommands(step *engine.InstallStep) ([]Command, error) {
	v := step.Parameters["version"]
	if v == "" {
		return nil, fmt.Errorf("step %s has no interpreter version", step.ID)
	}
	return []Command{
		{Name: "apt-get", Args: []string{"install", "-y",
			"python" + v, "python" + v + "-dev", "python3-pip"}},
	}, nil
}

func backendCommands(step *engine.InstallStep) ([]Command, error) {
	packages := strings.Fields(step.Parameters["packages"])
	if len(packages) == 0 {
		return nil, fmt.Errorf("backend step %s lists no packages", step.ID)
	}
	return []Command{
		{Name: "apt-get", Args: append([]string{"install", "-y"}, packages...)},
	}, nil
}

func frameworkCommands(step *engine.InstallStep, pip string) ([]Command, error) {
	params := step.Parameters

	// Source-mode steps are the data-processing framework's
	// build-from-source sequence.
	if params["mode"] == "source" {
		if archive := params["archive"]; archive != "" {
			return []Command{
				{Name: "tar", Args: []string{"-xzf", archive + ".tgz"}},
				{Name: "bash", Args: []string{"-c",
					fmt.Sprintf("cd %s && ./dev/make-distribution.sh --pip", archive)}},
			}, nil
		}
		return []Command{
			{Name: pip, Args: []string{"install", "--no-index",
				"--find-links", "dist", "pyspark"}},
		}, nil
	}

	pkg := params["package"]
	if pkg == "" {
		return nil, fmt.Errorf("step %s has no package", step.ID)
	}

	spec := pkg
	switch {
	case params["constraint"] != "":
		spec = pkg + params["constraint"]
	case params["version"] != "":
		spec = pkg + "==" + params["version"]
	}

	// A ref pins the library under test to a source revision or an
	// exact release.
	if ref := params["ref"]; ref != "" {
		if strings.Contains(ref, "://") {
			spec = "git+" + ref
		} else {
			spec = pkg + "==" + ref
		}
	}

	args := []string{"install"}
	if params["prerelease"] == "true" {
		args = append(args, "--pre")
	}

	cmd := Command{Name: pip, Args: append(args, spec)}
	if flags := params["flags"]; flags != "" {
		for _, f := range strings.Fields(flags) {
			cmd.Env = append(cmd.Env, f+"=1")
		}
	}
	return []Command{cmd}, nil
}

func patchCommands(step *engine.InstallStep) ([]Command, error) {
	params := step.Parameters

	// Named patches apply a prepared diff.
	if patch := params["patch"]; patch != "" {
		return []Command{
			{Name: "bash", Args: []string{"-c",
				fmt.Sprintf("patch -p1 < patches/%s.diff", patch)}},
		}, nil
	}

	path, setting, value := params["path"], params["setting"], params["value"]
	if path == "" || setting == "" || value == "" {
		return nil, fmt.Errorf("patch step %s is missing path, setting, or value", step.ID)
	}
	expr := fmt.Sprintf("s/%s=[0-9]+/%s=%s/g", setting, setting, value)
	return []Command{
		{Name: "bash", Args: []string{"-c",
			fmt.Sprintf("find %s -name '*.py' -exec sed -i -E '%s' {} +", path, expr)}},
	}, nil
}

func prefetchCommands(step *engine.InstallStep) ([]Command, error) {
	params := step.Parameters

	// Source archives are addressed by name under the release mirror.
	if archive := params["archive"]; archive != "" {
		uri := fmt.Sprintf("%s/%s.tgz", sparkArchiveBase, archive)
		return []Command{
			{Name: "curl", Args: []string{"-fsSL", "-o", archive + ".tgz", uri}},
		}, nil
	}

	uri := params["uri"]
	if uri == "" {
		return nil, fmt.Errorf("prefetch step %s has no uri", step.ID)
	}
	dest := uri[strings.LastIndex(uri, "/")+1:]
	cmds := []Command{
		{Name: "curl", Args: []string{"-fsSL", "-o", dest, uri}},
	}
	if sum := params["sha256"]; sum != "" {
		cmds = append(cmds, Command{Name: "bash", Args: []string{"-c",
			fmt.Sprintf("echo '%s  %s' | sha256sum -c -", sum, dest)}})
	}
	return cmds, nil
}
