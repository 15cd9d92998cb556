package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

// graphStep is a dependency-only stub for exercising the ordering logic.
type graphStep struct {
	name string
	deps []string
}

func (s graphStep) Name() string        { return s.name }
func (s graphStep) DependsOn() []string { return s.deps }
func (s graphStep) Probe(context.Context, domain.Inputs) (ports.ResourceRef, bool, error) {
	return ports.ResourceRef{}, false, nil
}
func (s graphStep) Create(context.Context, domain.Inputs) (ports.ResourceRef, error) {
	return ports.ResourceRef{}, nil
}
func (s graphStep) Describe(context.Context, ports.ResourceRef) (domain.StatusSnapshot, error) {
	return domain.StatusSnapshot{}, nil
}

func graph(specs ...graphStep) []ports.Step {
	steps := make([]ports.Step, len(specs))
	for i, s := range specs {
		steps[i] = s
	}
	return steps
}

func indexOf(t *testing.T, order []string, name string) int {
	t.Helper()
	for i, n := range order {
		if n == name {
			return i
		}
	}
	t.Fatalf("step %q missing from order %v", name, order)
	return -1
}

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	order, err := topologicalOrder(graph(
		graphStep{name: "data-source", deps: []string{"knowledge-base"}},
		graphStep{name: "knowledge-base", deps: []string{"vector-index", "execution-role"}},
		graphStep{name: "vector-index", deps: []string{"vector-collection"}},
		graphStep{name: "vector-collection", deps: []string{"role-policies"}},
		graphStep{name: "role-policies", deps: []string{"execution-role"}},
		graphStep{name: "execution-role"},
	))
	require.NoError(t, err)
	require.Len(t, order, 6)

	assert.Less(t, indexOf(t, order, "execution-role"), indexOf(t, order, "role-policies"))
	assert.Less(t, indexOf(t, order, "role-policies"), indexOf(t, order, "vector-collection"))
	assert.Less(t, indexOf(t, order, "vector-collection"), indexOf(t, order, "vector-index"))
	assert.Less(t, indexOf(t, order, "vector-index"), indexOf(t, order, "knowledge-base"))
	assert.Less(t, indexOf(t, order, "knowledge-base"), indexOf(t, order, "data-source"))
}

func TestTopologicalOrderBreaksTiesAlphabetically(t *testing.T) {
	order, err := topologicalOrder(graph(
		graphStep{name: "charlie"},
		graphStep{name: "alpha"},
		graphStep{name: "bravo"},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, order)
}

func TestTopologicalOrderRejectsCycle(t *testing.T) {
	_, err := topologicalOrder(graph(
		graphStep{name: "a", deps: []string{"c"}},
		graphStep{name: "b", deps: []string{"a"}},
		graphStep{name: "c", deps: []string{"b"}},
	))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeCyclicDependency))
}

func TestTopologicalOrderRejectsSelfDependency(t *testing.T) {
	_, err := topologicalOrder(graph(
		graphStep{name: "a", deps: []string{"a"}},
	))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeCyclicDependency))
}

func TestTopologicalOrderRejectsUndeclaredDependency(t *testing.T) {
	_, err := topologicalOrder(graph(
		graphStep{name: "a", deps: []string{"ghost"}},
	))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnresolvedDependency))
}

func TestTopologicalOrderRejectsDuplicateNames(t *testing.T) {
	_, err := topologicalOrder(graph(
		graphStep{name: "a"},
		graphStep{name: "a"},
	))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnresolvedDependency))
}
