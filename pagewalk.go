// Package pagewalk implements a generic traversal engine over the 4-level
// x86-64 page table hierarchy (PML4 -> PDPT -> PD -> PT). The engine owns the
// level-by-level descent, callers specialize it through per-level hooks and a
// resolver translating physical frame addresses into accessible tables.
package pagewalk

import (
	"github.com/pkg/errors"

	"github.com/outofforest/pagewalk/types"
)

// ResolveFunc translates the physical address of a frame holding a page table
// into an accessible table. It is the only address-space-specific dependency
// of the engines: an identity-mapped environment casts the address, a
// higher-half kernel adds the direct map offset, others may install a
// temporary mapping.
type ResolveFunc func(address types.PhysicalAddress) (*types.Table, error)

var (
	// ErrUnsupportedPageSize is reported when an entry is marked as a huge
	// page at a level where the architecture defines no such page size
	// (a 512 GiB page at PML4). The hierarchy violates the assumed 4-level
	// scheme, the walk is aborted.
	ErrUnsupportedPageSize = errors.New("unsupported page size at this level")

	// ErrCorruptedEntry is reported when an entry is marked as a huge page at
	// PT level, which no hardware state can legally produce. It indicates
	// corruption of the table contents or a logic error in the code managing
	// them, as opposed to the known architectural limitation reported by
	// ErrUnsupportedPageSize.
	ErrCorruptedEntry = errors.New("corrupted page table entry")
)

type verdict byte

const (
	// verdictStop means the entry terminates its branch: absent, an expected
	// huge page leaf, or the final 4 KiB page.
	verdictStop verdict = iota

	// verdictDescend means the entry points to a child table.
	verdictDescend
)

// classify applies the per-level presence and page size rules shared by both
// engines. For verdictDescend the returned address is the child table frame.
func classify(level types.Level, e types.Entry) (types.PhysicalAddress, verdict, error) {
	frame, err := e.Frame()
	switch {
	case errors.Is(err, types.ErrFrameAbsent):
		return 0, verdictStop, nil
	case errors.Is(err, types.ErrHugeFrame):
		switch level {
		case types.LevelPDPT, types.LevelPD:
			// Expected 1 GiB / 2 MiB leaf.
			return 0, verdictStop, nil
		case types.LevelPML4:
			return 0, verdictStop, errors.Wrapf(ErrUnsupportedPageSize, "%s", level)
		default:
			return 0, verdictStop, errors.Wrapf(ErrCorruptedEntry, "huge bit set at %s", level)
		}
	}

	if level == types.LevelPT {
		// Terminal 4 KiB page. Acting on it is up to the caller's PT entry
		// hook, the default stops here.
		return frame, verdictStop, nil
	}

	return frame, verdictDescend, nil
}
