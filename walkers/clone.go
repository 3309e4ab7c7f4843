package walkers

import (
	"github.com/pkg/errors"

	"github.com/outofforest/pagewalk"
	"github.com/outofforest/pagewalk/state"
	"github.com/outofforest/pagewalk/types"
)

// NewClone creates a clone walker allocating destination frames from the
// given allocator and writing them through the given state window.
func NewClone(appState *state.State, allocator *state.Allocator) *Clone {
	return &Clone{
		state:     appState,
		allocator: allocator,
	}
}

// Clone rebuilds a hierarchy with freshly allocated table frames, preserving
// entry permissions. Table frames are copied, frames of mapped pages (huge or
// 4 KiB) are shared with the source. The source hierarchy is walked
// read-only.
type Clone struct {
	state     *state.State
	allocator *state.Allocator

	// dst holds the destination table currently being filled at each level.
	// The walk is depth-first, so one slot per level is enough.
	dst [4]*types.Table
}

// Run clones the hierarchy rooted at the given PML4 table and returns the
// physical address of the new root.
func (c *Clone) Run(resolve pagewalk.ResolveFunc, pml4 *types.Table) (types.PhysicalAddress, error) {
	rootFrame, err := c.allocator.Allocate()
	if err != nil {
		return 0, errors.Wrapf(err, "allocating cloned PML4")
	}
	c.state.Clear(rootFrame)
	c.dst[types.LevelPML4] = c.state.Table(rootFrame)

	w, err := pagewalk.New(pagewalk.Hooks{
		Resolve: resolve,
		PML4:    c.table(types.LevelPML4),
		PDPT:    c.table(types.LevelPDPT),
		PD:      c.table(types.LevelPD),
		PT:      c.table(types.LevelPT),
	})
	if err != nil {
		return 0, err
	}

	if err := w.Run(pml4); err != nil {
		return 0, err
	}
	return rootFrame, nil
}

func (c *Clone) table(level types.Level) pagewalk.TableHook {
	return func(w *pagewalk.Walker, table *types.Table) error {
		dst := c.dst[level]
		for i := range table {
			entry := table[i]

			_, err := entry.Frame()
			switch {
			case errors.Is(err, types.ErrFrameAbsent):
				continue
			case errors.Is(err, types.ErrHugeFrame):
				if level == types.LevelPDPT || level == types.LevelPD {
					// The huge page itself is shared with the source.
					dst[i] = entry
					continue
				}
				// Illegal configuration, reported by the default policy.
				if err := w.DescendEntry(level, entry); err != nil {
					return errors.Wrapf(err, "%s[%d]", level, i)
				}
				continue
			}

			if level == types.LevelPT {
				// The 4 KiB page is shared with the source.
				dst[i] = entry
				continue
			}

			childFrame, err := c.allocator.Allocate()
			if err != nil {
				return errors.Wrapf(err, "allocating cloned %s", level.Next())
			}
			c.state.Clear(childFrame)
			c.dst[level.Next()] = c.state.Table(childFrame)

			if err := w.DescendEntry(level, entry); err != nil {
				return errors.Wrapf(err, "%s[%d]", level, i)
			}
			dst[i] = types.NewEntry(childFrame, entry.Flags())
		}
		return nil
	}
}
