package types

import (
	"github.com/pkg/errors"
)

// Flag is a single attribute bit of a page table entry.
type Flag uint64

// Entry attribute bits defined by the architecture.
const (
	FlagPresent   Flag = 1 << 0
	FlagWritable  Flag = 1 << 1
	FlagUser      Flag = 1 << 2
	FlagWriteThru Flag = 1 << 3
	FlagNoCache   Flag = 1 << 4
	FlagAccessed  Flag = 1 << 5
	FlagDirty     Flag = 1 << 6
	FlagHuge      Flag = 1 << 7
	FlagGlobal    Flag = 1 << 8
	FlagNoExecute Flag = 1 << 63
)

// frameMask selects the physical frame address stored in an entry.
// Bits 12-51 per the architecture, frames are always 4 KiB aligned.
const frameMask = 0x000ffffffffff000

var (
	// ErrFrameAbsent is returned by Entry.Frame when the entry has no frame
	// mapped. It classifies the entry, it does not indicate a failure.
	ErrFrameAbsent = errors.New("entry does not map a frame")

	// ErrHugeFrame is returned by Entry.Frame when the entry maps a huge page
	// instead of pointing to a child table. It classifies the entry, it does
	// not indicate a failure.
	ErrHugeFrame = errors.New("entry maps a huge page")
)

// Entry is one slot of a page table. It encodes a physical frame address and
// a set of attribute flags.
type Entry uint64

// NewEntry returns an entry pointing to the given frame with the given flags.
func NewEntry(frame PhysicalAddress, flags Flag) Entry {
	return Entry(uint64(frame)&frameMask | uint64(flags))
}

// HasFlags returns true if all the given flags are set on the entry.
func (e Entry) HasFlags(flags Flag) bool {
	return Flag(e)&flags == flags
}

// Flags returns the attribute bits of the entry.
func (e Entry) Flags() Flag {
	return Flag(e) &^ frameMask
}

// Frame classifies the entry. For an entry pointing to a child table (or, at
// PT level, to the final 4 KiB page) it returns the frame's physical address.
// For a non-present entry it returns ErrFrameAbsent, for a huge page mapping
// ErrHugeFrame. Which of those classifications is legal depends on the level
// the entry belongs to and is decided by the caller.
func (e Entry) Frame() (PhysicalAddress, error) {
	switch {
	case !e.HasFlags(FlagPresent):
		return 0, ErrFrameAbsent
	case e.HasFlags(FlagHuge):
		return 0, ErrHugeFrame
	default:
		return PhysicalAddress(uint64(e) & frameMask), nil
	}
}

// HugeFrame returns the physical address of the huge page mapped by the
// entry. It must only be called when Frame reported ErrHugeFrame.
func (e Entry) HugeFrame() PhysicalAddress {
	return PhysicalAddress(uint64(e) & frameMask)
}

// SetFrame points the entry at the given frame, keeping the attribute bits.
func (e *Entry) SetFrame(frame PhysicalAddress) {
	*e = Entry(uint64(*e)&^frameMask | uint64(frame)&frameMask)
}

// SetFlags sets the given attribute bits on the entry.
func (e *Entry) SetFlags(flags Flag) {
	*e = Entry(uint64(*e) | uint64(flags))
}

// ClearFlags unsets the given attribute bits on the entry.
func (e *Entry) ClearFlags(flags Flag) {
	*e = Entry(uint64(*e) &^ uint64(flags))
}

// Clear resets the entry to the absent state.
func (e *Entry) Clear() {
	*e = 0
}
