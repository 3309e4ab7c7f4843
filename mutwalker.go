package pagewalk

import (
	"github.com/pkg/errors"

	"github.com/outofforest/pagewalk/types"
)

type (
	// MutTableHook is invoked for a whole table of the mutable engine. The
	// hook may rewrite the table in place.
	MutTableHook func(w *MutWalker, table *types.Table) error

	// MutEntryHook is invoked for a single entry of the mutable engine. The
	// hook may rewrite the entry in place.
	MutEntryHook func(w *MutWalker, entry *types.Entry) error
)

// MutHooks configures the mutable engine. The structure and defaults mirror
// Hooks, the difference is that hooks receive mutable access.
type MutHooks struct {
	// Resolve translates the physical address of a frame holding a page table
	// into a table accessible for writing. Required.
	Resolve ResolveFunc

	PML4 MutTableHook
	PDPT MutTableHook
	PD   MutTableHook
	PT   MutTableHook

	PML4Entry MutEntryHook
	PDPTEntry MutEntryHook
	PDEntry   MutEntryHook
	PTEntry   MutEntryHook
}

// NewMut creates the mutable traversal engine.
func NewMut(hooks MutHooks) (*MutWalker, error) {
	if hooks.Resolve == nil {
		return nil, errors.New("resolver is required")
	}
	return &MutWalker{hooks: hooks}, nil
}

// MutWalker is the mutable traversal engine. It follows the exact descent
// policy of Walker but hands out tables and entries for in-place edits. The
// walk is single-threaded and depth-first, so at most one mutable table is
// live per level. Callers must serialize mutable walks over overlapping
// hierarchies, there is no internal locking.
type MutWalker struct {
	hooks MutHooks
}

// Run walks the hierarchy rooted at the given PML4 table, depth-first,
// entries in ascending index order. The first error aborts the walk and is
// returned.
func (w *MutWalker) Run(pml4 *types.Table) error {
	return w.VisitTable(types.LevelPML4, pml4)
}

// VisitTable applies the table hook of the given level, or the default entry
// iteration if no hook is set.
func (w *MutWalker) VisitTable(level types.Level, table *types.Table) error {
	if hook := w.tableHook(level); hook != nil {
		return hook(w, table)
	}
	return w.IterateTable(level, table)
}

// IterateTable is the default table hook body: it visits all 512 entries in
// ascending index order, stopping at the first error.
func (w *MutWalker) IterateTable(level types.Level, table *types.Table) error {
	for i := range table {
		if err := w.VisitEntry(level, &table[i]); err != nil {
			return errors.Wrapf(err, "%s[%d]", level, i)
		}
	}
	return nil
}

// VisitEntry applies the entry hook of the given level, or the default
// descent if no hook is set.
func (w *MutWalker) VisitEntry(level types.Level, entry *types.Entry) error {
	if hook := w.entryHook(level); hook != nil {
		return hook(w, entry)
	}
	return w.DescendEntry(level, entry)
}

// DescendEntry is the default entry hook body, classifying the entry exactly
// like the read-only engine. The entry is classified once, up front, so edits
// made by child hooks cannot redirect an in-flight descent.
func (w *MutWalker) DescendEntry(level types.Level, entry *types.Entry) error {
	frame, v, err := classify(level, *entry)
	if err != nil || v == verdictStop {
		return err
	}

	child, err := w.hooks.Resolve(frame)
	if err != nil {
		return errors.Wrapf(err, "resolving %s table", level.Next())
	}
	return w.VisitTable(level.Next(), child)
}

func (w *MutWalker) tableHook(level types.Level) MutTableHook {
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

func (w *MutWalker) entryHook(level types.Level) MutEntryHook {
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
