package types

const (
	// NumTableEntries is the number of entries in a page table at every level.
	NumTableEntries = 512

	// EntryLength is the number of bytes taken by one page table entry.
	EntryLength = 8

	// TableLength is the number of bytes taken by one page table.
	TableLength = NumTableEntries * EntryLength

	// Size4KiB is the size of the base page mapped by a PT entry.
	Size4KiB uint64 = 4 * 1024

	// Size2MiB is the size of the huge page mapped by a PD entry.
	Size2MiB uint64 = 2 * 1024 * 1024

	// Size1GiB is the size of the huge page mapped by a PDPT entry.
	Size1GiB uint64 = 1024 * 1024 * 1024
)

type (
	// PhysicalAddress represents the address of a frame in physical memory.
	PhysicalAddress uint64

	// VirtualAddress represents an address in the currently active address space.
	VirtualAddress uint64
)

// Level identifies one level of the 4-level page table hierarchy.
type Level uint8

// Levels of the hierarchy, root to leaf.
const (
	LevelPML4 Level = iota
	LevelPDPT
	LevelPD
	LevelPT
)

// Next returns the level below l. Calling it on LevelPT is invalid.
func (l Level) Next() Level {
	return l + 1
}

func (l Level) String() string {
	switch l {
	case LevelPML4:
		return "PML4"
	case LevelPDPT:
		return "PDPT"
	case LevelPD:
		return "PD"
	case LevelPT:
		return "PT"
	default:
		return "invalid"
	}
}

// IndexShift returns the position of the virtual address bits indexing tables
// at level l.
func (l Level) IndexShift() uint {
	return 12 + 9*uint(LevelPT-l)
}

// PageSize returns the size of the region mapped by a leaf entry at level l.
// PML4 entries never map pages, so for PML4 zero is returned.
func (l Level) PageSize() uint64 {
	switch l {
	case LevelPDPT:
		return Size1GiB
	case LevelPD:
		return Size2MiB
	case LevelPT:
		return Size4KiB
	default:
		return 0
	}
}

// Table is one page table: a fixed array of 512 entries indexed by the 9
// virtual address bits belonging to the table's level.
type Table [NumTableEntries]Entry
