package walkers

import (
	"github.com/pkg/errors"

	"github.com/outofforest/pagewalk"
	"github.com/outofforest/pagewalk/state"
	"github.com/outofforest/pagewalk/types"
)

// NewTeardown creates a teardown walker returning freed frames to the given
// deallocator.
func NewTeardown(deallocator *state.Deallocator) *Teardown {
	return &Teardown{
		deallocator: deallocator,
	}
}

// Teardown clears a hierarchy in place using the mutable engine. Child table
// frames are deallocated bottom-up, children before their parents, so the
// hierarchy stays consistent at every step. Frames of mapped pages are not
// owned by the tables and are left untouched. The root table ends up empty,
// its frame stays with the caller.
type Teardown struct {
	// Freed is the number of table frames returned to the deallocator.
	Freed uint64

	deallocator *state.Deallocator
}

// Hooks returns the hook set performing the teardown.
func (t *Teardown) Hooks(resolve pagewalk.ResolveFunc) pagewalk.MutHooks {
	return pagewalk.MutHooks{
		Resolve:   resolve,
		PML4Entry: t.interior(types.LevelPML4),
		PDPTEntry: t.interior(types.LevelPDPT),
		PDEntry:   t.interior(types.LevelPD),
		PTEntry:   t.leaf,
	}
}

func (t *Teardown) interior(level types.Level) pagewalk.MutEntryHook {
	return func(w *pagewalk.MutWalker, entry *types.Entry) error {
		frame, err := entry.Frame()
		switch {
		case errors.Is(err, types.ErrFrameAbsent):
			return nil
		case errors.Is(err, types.ErrHugeFrame):
			if level == types.LevelPML4 {
				// Illegal configuration, reported by the default policy.
				return w.DescendEntry(level, entry)
			}
			entry.Clear()
			return nil
		}

		if err := w.DescendEntry(level, entry); err != nil {
			return err
		}

		t.deallocator.Deallocate(frame)
		t.Freed++
		entry.Clear()
		return nil
	}
}

func (t *Teardown) leaf(w *pagewalk.MutWalker, entry *types.Entry) error {
	// Classification first so PT-level corruption is still reported.
	if err := w.DescendEntry(types.LevelPT, entry); err != nil {
		return err
	}
	entry.Clear()
	return nil
}
