package test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/pagewalk/state"
	"github.com/outofforest/pagewalk/types"
)

// NewHierarchy creates a hierarchy builder used in tests, backed by a window
// of the given number of frames.
func NewHierarchy(t *testing.T, numOfFrames uint64) *Hierarchy {
	appState := state.NewForTest(t, numOfFrames*types.TableLength)
	return &Hierarchy{
		State:     appState,
		Allocator: appState.NewAllocator(),
	}
}

// Hierarchy builds page table hierarchies for tests.
type Hierarchy struct {
	State     *state.State
	Allocator *state.Allocator
}

// NewTable allocates a zeroed table frame.
func (h *Hierarchy) NewTable(t *testing.T) (types.PhysicalAddress, *types.Table) {
	address, err := h.Allocator.Allocate()
	require.NoError(t, err)
	h.State.Clear(address)
	return address, h.State.Table(address)
}

// Resolve is the direct map resolver of the window backing the hierarchy.
func (h *Hierarchy) Resolve(address types.PhysicalAddress) (*types.Table, error) {
	return h.State.Table(address), nil
}

// Map installs a 4 KiB mapping at the given per-level indices, allocating
// missing tables on the way.
func (h *Hierarchy) Map(
	t *testing.T,
	root *types.Table,
	indices [4]int,
	page types.PhysicalAddress,
	flags types.Flag,
) {
	table := root
	for _, level := range []types.Level{types.LevelPML4, types.LevelPDPT, types.LevelPD} {
		table = h.childTable(t, table, indices[level])
	}
	table[indices[types.LevelPT]] = types.NewEntry(page, flags|types.FlagPresent)
}

// MapHuge installs a huge page mapping terminating at the given level, PDPT
// for 1 GiB pages or PD for 2 MiB pages, allocating missing tables on the
// way.
func (h *Hierarchy) MapHuge(
	t *testing.T,
	root *types.Table,
	level types.Level,
	indices [4]int,
	page types.PhysicalAddress,
	flags types.Flag,
) {
	require.Contains(t, []types.Level{types.LevelPDPT, types.LevelPD}, level)

	table := root
	for l := types.LevelPML4; l < level; l = l.Next() {
		table = h.childTable(t, table, indices[l])
	}
	table[indices[level]] = types.NewEntry(page, flags|types.FlagPresent|types.FlagHuge)
}

func (h *Hierarchy) childTable(t *testing.T, table *types.Table, index int) *types.Table {
	childFrame, err := table[index].Frame()
	if errors.Is(err, types.ErrFrameAbsent) {
		var child *types.Table
		childFrame, child = h.NewTable(t)
		table[index] = types.NewEntry(childFrame, types.FlagPresent|types.FlagWritable)
		return child
	}
	require.NoError(t, err)
	return h.State.Table(childFrame)
}
