package walkers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/pagewalk"
	"github.com/outofforest/pagewalk/test"
	"github.com/outofforest/pagewalk/types"
)

func TestRegionsMergeAcrossPageSizes(t *testing.T) {
	requireT := require.New(t)

	h := test.NewHierarchy(t, 16)
	_, root := h.NewTable(t)

	// A full PT of writable 4 KiB pages followed by a writable 2 MiB page:
	// one virtually contiguous run with uniform permissions.
	for i := range types.NumTableEntries {
		h.Map(t, root, [4]int{0, 0, 0, i}, types.PhysicalAddress(uint64(i)*types.Size4KiB), types.FlagWritable)
	}
	h.MapHuge(t, root, types.LevelPD, [4]int{0, 0, 1, 0}, types.PhysicalAddress(types.Size1GiB), types.FlagWritable)

	regions := NewRegions()
	w, err := pagewalk.New(regions.Hooks(h.Resolve))
	requireT.NoError(err)
	requireT.NoError(w.Run(root))

	requireT.Equal([]Region{
		{
			Start: 0,
			Size:  2 * types.Size2MiB,
			Flags: types.FlagPresent | types.FlagWritable,
		},
	}, regions.Regions())
}

func TestRegionsSplitOnPermissionChange(t *testing.T) {
	requireT := require.New(t)

	h := test.NewHierarchy(t, 16)
	_, root := h.NewTable(t)

	for i := range 3 {
		h.Map(t, root, [4]int{0, 0, 0, i}, types.PhysicalAddress(uint64(i)*types.Size4KiB), types.FlagWritable)
	}
	for i := 3; i < 5; i++ {
		h.Map(t, root, [4]int{0, 0, 0, i}, types.PhysicalAddress(uint64(i)*types.Size4KiB), types.FlagNoExecute)
	}

	regions := NewRegions()
	w, err := pagewalk.New(regions.Hooks(h.Resolve))
	requireT.NoError(err)
	requireT.NoError(w.Run(root))

	requireT.Equal([]Region{
		{
			Start: 0,
			Size:  3 * types.Size4KiB,
			Flags: types.FlagPresent | types.FlagWritable,
		},
		{
			Start: types.VirtualAddress(3 * types.Size4KiB),
			Size:  2 * types.Size4KiB,
			Flags: types.FlagPresent | types.FlagNoExecute,
		},
	}, regions.Regions())
}

func TestRegionsSplitOnVirtualGap(t *testing.T) {
	requireT := require.New(t)

	h := test.NewHierarchy(t, 16)
	_, root := h.NewTable(t)

	h.Map(t, root, [4]int{0, 0, 0, 0}, types.PhysicalAddress(types.Size2MiB), 0)
	h.Map(t, root, [4]int{0, 0, 0, 2}, types.PhysicalAddress(types.Size2MiB+types.Size4KiB), 0)

	regions := NewRegions()
	w, err := pagewalk.New(regions.Hooks(h.Resolve))
	requireT.NoError(err)
	requireT.NoError(w.Run(root))

	requireT.Equal([]Region{
		{Start: 0, Size: types.Size4KiB, Flags: types.FlagPresent},
		{Start: types.VirtualAddress(2 * types.Size4KiB), Size: types.Size4KiB, Flags: types.FlagPresent},
	}, regions.Regions())
}

func TestRegionsUpperHalfAddressesAreCanonical(t *testing.T) {
	requireT := require.New(t)

	h := test.NewHierarchy(t, 16)
	_, root := h.NewTable(t)

	h.MapHuge(t, root, types.LevelPDPT, [4]int{300, 4, 0, 0}, types.PhysicalAddress(types.Size1GiB), 0)

	regions := NewRegions()
	w, err := pagewalk.New(regions.Hooks(h.Resolve))
	requireT.NoError(err)
	requireT.NoError(w.Run(root))

	requireT.Equal([]Region{
		{
			Start: types.VirtualAddress(^uint64(1<<48-1) | 300<<39 | 4<<30),
			Size:  types.Size1GiB,
			Flags: types.FlagPresent,
		},
	}, regions.Regions())
}
