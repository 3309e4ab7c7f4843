package walkers

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/outofforest/mass"
	"github.com/outofforest/pagewalk"
	"github.com/outofforest/pagewalk/types"
)

// permMask selects the entry bits relevant for permission auditing.
const permMask = types.FlagPresent | types.FlagWritable | types.FlagUser | types.FlagNoExecute

// Region is a virtually contiguous run of mapped memory with uniform
// permissions.
type Region struct {
	Start types.VirtualAddress
	Size  uint64
	Flags types.Flag
}

// NewRegions creates a region collector.
func NewRegions() *Regions {
	return &Regions{
		massRegion: mass.New[Region](1024),
	}
}

// Regions collects the mapped regions of a hierarchy together with their
// permissions. Adjacent mappings with identical permissions are merged.
// Regions come out in ascending virtual address order because that is the
// order the engine visits entries in.
type Regions struct {
	massRegion *mass.Mass[Region]
	regions    []*Region
	index      [4]uint64
}

// Hooks returns the hook set feeding the collector. The table hooks track the
// per-level indices the virtual addresses are derived from, so the set must
// be used as a whole.
func (r *Regions) Hooks(resolve pagewalk.ResolveFunc) pagewalk.Hooks {
	return pagewalk.Hooks{
		Resolve:   resolve,
		PML4:      r.table(types.LevelPML4),
		PDPT:      r.table(types.LevelPDPT),
		PD:        r.table(types.LevelPD),
		PT:        r.table(types.LevelPT),
		PDPTEntry: r.leaf(types.LevelPDPT),
		PDEntry:   r.leaf(types.LevelPD),
		PTEntry:   r.leaf(types.LevelPT),
	}
}

// Regions returns the regions collected so far.
func (r *Regions) Regions() []Region {
	return lo.Map(r.regions, func(region *Region, _ int) Region {
		return *region
	})
}

func (r *Regions) table(level types.Level) pagewalk.TableHook {
	return func(w *pagewalk.Walker, table *types.Table) error {
		for i := range table {
			r.index[level] = uint64(i)
			if err := w.VisitEntry(level, table[i]); err != nil {
				return errors.Wrapf(err, "%s[%d]", level, i)
			}
		}
		return nil
	}
}

func (r *Regions) leaf(level types.Level) pagewalk.EntryHook {
	return func(w *pagewalk.Walker, entry types.Entry) error {
		_, err := entry.Frame()
		switch {
		case errors.Is(err, types.ErrFrameAbsent):
			return nil
		case errors.Is(err, types.ErrHugeFrame):
			if level == types.LevelPT {
				// Corruption, reported by the default policy.
				return w.DescendEntry(level, entry)
			}
		default:
			if level != types.LevelPT {
				return w.DescendEntry(level, entry)
			}
		}

		r.record(level, entry)
		return nil
	}
}

func (r *Regions) record(level types.Level, entry types.Entry) {
	start := r.virtualAddress(level)
	size := level.PageSize()
	flags := entry.Flags() & permMask

	if n := len(r.regions); n > 0 {
		last := r.regions[n-1]
		if last.Flags == flags && last.Start+types.VirtualAddress(last.Size) == start {
			last.Size += size
			return
		}
	}

	region := r.massRegion.New()
	*region = Region{Start: start, Size: size, Flags: flags}
	r.regions = append(r.regions, region)
}

// virtualAddress computes the canonical virtual address selected by the
// current indices of the levels from the root down to the given one.
func (r *Regions) virtualAddress(level types.Level) types.VirtualAddress {
	var address uint64
	for l := types.LevelPML4; ; l = l.Next() {
		address |= r.index[l] << l.IndexShift()
		if l == level {
			break
		}
	}
	// Sign-extend bit 47, the upper half of the address space is canonical
	// only with bits 48-63 set.
	if r.index[types.LevelPML4] >= types.NumTableEntries/2 {
		address |= ^uint64(1<<48 - 1)
	}
	return types.VirtualAddress(address)
}
