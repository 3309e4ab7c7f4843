package walkers

import (
	"github.com/pkg/errors"

	"github.com/outofforest/pagewalk"
	"github.com/outofforest/pagewalk/types"
)

// Counter gathers mapping statistics from a read-only walk: the number of
// visited tables and of present mappings per page size.
type Counter struct {
	Tables    uint64
	Pages4KiB uint64
	Pages2MiB uint64
	Pages1GiB uint64
}

// Hooks returns the hook set feeding the counter.
func (c *Counter) Hooks(resolve pagewalk.ResolveFunc) pagewalk.Hooks {
	return pagewalk.Hooks{
		Resolve:   resolve,
		PML4:      c.table(types.LevelPML4),
		PDPT:      c.table(types.LevelPDPT),
		PD:        c.table(types.LevelPD),
		PT:        c.table(types.LevelPT),
		PDPTEntry: c.leaf(types.LevelPDPT, &c.Pages1GiB),
		PDEntry:   c.leaf(types.LevelPD, &c.Pages2MiB),
		PTEntry:   c.leaf(types.LevelPT, &c.Pages4KiB),
	}
}

func (c *Counter) table(level types.Level) pagewalk.TableHook {
	return func(w *pagewalk.Walker, table *types.Table) error {
		c.Tables++
		return w.IterateTable(level, table)
	}
}

func (c *Counter) leaf(level types.Level, counter *uint64) pagewalk.EntryHook {
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
			*counter++
			return nil
		}

		if level == types.LevelPT {
			*counter++
			return nil
		}
		return w.DescendEntry(level, entry)
	}
}
