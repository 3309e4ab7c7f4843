package pagewalk

import (
	"github.com/pkg/errors"

	"github.com/outofforest/pagewalk/types"
)

type (
	// TableHook is invoked for a whole table of the read-only engine.
	TableHook func(w *Walker, table *types.Table) error

	// EntryHook is invoked for a single entry of the read-only engine.
	EntryHook func(w *Walker, entry types.Entry) error
)

// Hooks configures the read-only engine. Every hook is optional, a nil hook
// means the default recursive descent. A hook replaces the default behavior
// for its level, it may continue the standard walk by calling IterateTable or
// DescendEntry on the walker it receives.
type Hooks struct {
	// Resolve is required. It is called exactly once per present, non-huge,
	// non-terminal entry, immediately before descending.
	Resolve ResolveFunc

	PML4 TableHook
	PDPT TableHook
	PD   TableHook
	PT   TableHook

	PML4Entry EntryHook
	PDPTEntry EntryHook
	PDEntry   EntryHook
	PTEntry   EntryHook
}

// New creates the read-only traversal engine.
func New(hooks Hooks) (*Walker, error) {
	if hooks.Resolve == nil {
		return nil, errors.New("resolver is required")
	}
	return &Walker{hooks: hooks}, nil
}

// Walker is the read-only traversal engine. It never mutates the hierarchy it
// walks, and hooks must not either. A walker is a single-owner object: one
// walk at a time, no internal locking.
type Walker struct {
	hooks Hooks
}

// Run walks the hierarchy rooted at the given PML4 table, depth-first, entries
// in ascending index order. The first error aborts the walk and is returned.
func (w *Walker) Run(pml4 *types.Table) error {
	return w.VisitTable(types.LevelPML4, pml4)
}

// VisitTable applies the table hook of the given level, or the default entry
// iteration if no hook is set.
func (w *Walker) VisitTable(level types.Level, table *types.Table) error {
	if hook := w.tableHook(level); hook != nil {
		return hook(w, table)
	}
	return w.IterateTable(level, table)
}

// IterateTable is the default table hook body: it visits all 512 entries in
// ascending index order, stopping at the first error.
func (w *Walker) IterateTable(level types.Level, table *types.Table) error {
	for i := range table {
		if err := w.VisitEntry(level, table[i]); err != nil {
			return errors.Wrapf(err, "%s[%d]", level, i)
		}
	}
	return nil
}

// VisitEntry applies the entry hook of the given level, or the default
// descent if no hook is set.
func (w *Walker) VisitEntry(level types.Level, entry types.Entry) error {
	if hook := w.entryHook(level); hook != nil {
		return hook(w, entry)
	}
	return w.DescendEntry(level, entry)
}

// DescendEntry is the default entry hook body. Absent entries and expected
// huge page leaves (1 GiB at PDPT, 2 MiB at PD) terminate the branch. An
// entry pointing to a child table is resolved and the child's table hook is
// applied. Illegal huge classifications are reported per the package errors.
func (w *Walker) DescendEntry(level types.Level, entry types.Entry) error {
	frame, v, err := classify(level, entry)
	if err != nil || v == verdictStop {
		return err
	}

	child, err := w.hooks.Resolve(frame)
	if err != nil {
		return errors.Wrapf(err, "resolving %s table", level.Next())
	}
	return w.VisitTable(level.Next(), child)
}

func (w *Walker) tableHook(level types.Level) TableHook {
	switch level {
	case types.LevelPML4:
		return w.hooks.PML4
	case types.LevelPDPT:
		return w.hooks.PDPT
	case types.LevelPD:
		return w.hooks.PD
	default:
		return w.hooks.PT
	}
}

func (w *Walker) entryHook(level types.Level) EntryHook {
	switch level {
	case types.LevelPML4:
		return w.hooks.PML4Entry
	case types.LevelPDPT:
		return w.hooks.PDPTEntry
	case types.LevelPD:
		return w.hooks.PDEntry
	default:
		return w.hooks.PTEntry
	}
}
