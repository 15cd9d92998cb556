package service

import (
	"sort"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

// topologicalOrder returns a dependency-respecting execution order (Kahn's
// algorithm). Ties are broken alphabetically so the order is stable across
// runs. Structural problems — references to undeclared steps, duplicate
// names, cycles — are construction-time failures, never runtime ones.
func topologicalOrder(steps []ports.Step) ([]string, error) {
	byName := make(map[string]ports.Step, len(steps))
	for _, s := range steps {
		if _, dup := byName[s.Name()]; dup {
			return nil, apperrors.Newf(apperrors.CodeUnresolvedDependency,
				"duplicate step name %q", s.Name())
		}
		byName[s.Name()] = s
	}

	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	for _, s := range steps {
		indegree[s.Name()] += 0
		for _, dep := range s.DependsOn() {
			if _, ok := byName[dep]; !ok {
				return nil, apperrors.Newf(apperrors.CodeUnresolvedDependency,
					"step %q depends on undeclared step %q", s.Name(), dep)
			}
			indegree[s.Name()]++
			dependents[dep] = append(dependents[dep], s.Name())
		}
	}

	var frontier []string
	for name, deg := range indegree {
		if deg == 0 {
			frontier = append(frontier, name)
		}
	}
	sort.Strings(frontier)

	order := make([]string, 0, len(steps))
	for len(frontier) > 0 {
		name := frontier[0]
		frontier = frontier[1:]
		order = append(order, name)

		next := dependents[name]
		sort.Strings(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				frontier = append(frontier, dep)
			}
		}
		sort.Strings(frontier)
	}

	if len(order) != len(steps) {
		return nil, apperrors.New(apperrors.CodeCyclicDependency,
			"step dependencies form a cycle, no valid execution order exists")
	}
	return order, nil
}
