package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is the explicit depends-on graph over a plan's steps. The
// planner already imposes a total order via ordinals; the graph makes
// the partial order visible so an executor may parallelize steps that
// share no edge, and so ordering invariants are testable.
type Graph struct {
	// Nodes maps step ID to its graph node.
	Nodes map[string]*GraphNode `json:"nodes"`

	// Edges lists every depends-on edge (From must finish before To).
	Edges []GraphEdge `json:"edges"`

	// Roots are the steps with no dependencies.
	Roots []string `json:"roots"`

	// Depth is the number of topological levels.
	Depth int `json:"depth"`
}

// GraphNode is one step in the graph with its topological level.
// Steps at the same level share no ordering constraint.
type GraphNode struct {
	ID           string   `json:"id"`
	Level        int      `json:"level"`
	Dependencies []string `json:"dependencies,omitempty"`
	Dependents   []string `json:"dependents,omitempty"`
}

// GraphEdge is a single depends-on edge.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BuildGraph constructs the depends-on graph for a plan, rejecting
// unknown dependency targets and cycles.
func BuildGraph(plan *InstallPlan) (*Graph, error) {
	g := &Graph{
		Nodes: make(map[string]*GraphNode, len(plan.Steps)),
		Edges: make([]GraphEdge, 0),
		Roots: make([]string, 0),
	}

	dependents := make(map[string][]string)
	inDegree := make(map[string]int)

	for _, s := range plan.Steps {
		if _, dup := g.Nodes[s.ID]; dup {
			return nil, NewInternalError(fmt.Sprintf("duplicate step ID %s", s.ID), nil)
		}
		g.Nodes[s.ID] = &GraphNode{ID: s.ID, Dependencies: s.DependsOn}
		inDegree[s.ID] = len(s.DependsOn)
	}

	for _, s := range plan.Steps {
		for _, dep := range s.DependsOn {
			if _, ok := g.Nodes[dep]; !ok {
				return nil, NewInternalError(
					fmt.Sprintf("step %s depends on unknown step %s", s.ID, dep), nil)
			}
			dependents[dep] = append(dependents[dep], s.ID)
			g.Edges = append(g.Edges, GraphEdge{From: dep, To: s.ID})
		}
	}

	for id, node := range g.Nodes {
		node.Dependents = dependents[id]
	}

	// Kahn's algorithm with level tracking. Any node left unprocessed
	// afterwards sits on a cycle.
	var level []string
	for id, deg := range inDegree {
		if deg == 0 {
			level = append(level, id)
		}
	}
	sort.Strings(level)

	processed := 0
	for len(level) > 0 {
		var next []string
		for _, id := range level {
			g.Nodes[id].Level = g.Depth
			if g.Depth == 0 {
				g.Roots = append(g.Roots, id)
			}
			processed++
			for _, dep := range dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Strings(next)
		g.Depth++
		level = next
	}

	if processed != len(g.Nodes) {
		return nil, NewInternalError("dependency cycle detected among plan steps", nil)
	}

	return g, nil
}

// ToDOT renders the plan's depends-on graph in Graphviz DOT format.
func ToDOT(plan *InstallPlan) string {
	var sb strings.Builder
	sb.WriteString("digraph InstallPlan {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=\"filled,rounded\"];\n\n")

	for _, s := range plan.Steps {
		sb.WriteString(fmt.Sprintf("  %q [label=\"%d: %s\\n%s\", fillcolor=%q];\n",
			s.ID, s.Ordinal, s.Name, s.Kind, stepColor(s.Kind)))
	}
	sb.WriteString("\n")

	for _, s := range plan.Steps {
		for _, dep := range s.DependsOn {
			sb.WriteString(fmt.Sprintf("  %q -> %q;\n", dep, s.ID))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func stepColor(kind StepKind) string {
	switch kind {
	case StepInstallSystemPackage:
		return "lightgray"
	case StepInstallLanguageRuntime:
		return "khaki"
	case StepInstallBackend:
		return "lightsalmon"
	case StepInstallFramework:
		return "lightblue"
	case StepApplyPatch:
		return "lightgreen"
	case StepPrefetchFixture:
		return "plum"
	default:
		return "white"
	}
}
