package state

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/outofforest/pagewalk/types"
	"github.com/outofforest/photon"
)

// New creates a new physical memory window. The window is one anonymous
// mapping split into table-sized frames, addressed by their byte offset. It
// plays the role of a direct map: a physical frame address resolves to the
// memory at origin+address.
func New(size uint64, useHugePages bool) (*State, func(), error) {
	origin, deallocateFunc, err := Allocate(size, types.TableLength, useHugePages)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "memory allocation failed")
	}

	numOfFrames := size / types.TableLength
	if numOfFrames < 2 {
		deallocateFunc()
		return nil, nil, errors.New("window must fit at least two frames")
	}

	frameRing := newRing[types.PhysicalAddress](numOfFrames)
	// Frame 0 is reserved so the zero address never denotes a live table.
	for i := uint64(1); i < numOfFrames; i++ {
		frameRing.Put(types.PhysicalAddress(i * types.TableLength))
	}
	frameRing.Commit()

	return &State{
		origin:      origin,
		size:        size,
		numOfFrames: numOfFrames,
		frameRing:   frameRing,
	}, deallocateFunc, nil
}

// State stores the physical memory window.
type State struct {
	origin      unsafe.Pointer
	size        uint64
	numOfFrames uint64
	frameRing   *ring[types.PhysicalAddress]
}

// NewAllocator creates new frame allocator.
func (s *State) NewAllocator() *Allocator {
	return &Allocator{state: s}
}

// NewDeallocator creates new frame deallocator.
func (s *State) NewDeallocator() *Deallocator {
	return &Deallocator{state: s}
}

// Node returns pointer to the beginning of a frame.
func (s *State) Node(address types.PhysicalAddress) unsafe.Pointer {
	return unsafe.Add(s.origin, address)
}

// Table returns the page table stored in a frame.
func (s *State) Table(address types.PhysicalAddress) *types.Table {
	return photon.FromPointer[types.Table](s.Node(address))
}

// Bytes returns byte slice of a frame.
func (s *State) Bytes(address types.PhysicalAddress) []byte {
	return photon.SliceFromPointer[byte](s.Node(address), types.TableLength)
}

// Clear sets all the bytes of the frame to zero.
func (s *State) Clear(address types.PhysicalAddress) {
	clear(s.Bytes(address))
}

// Commit makes the frames deallocated so far available for allocation again.
func (s *State) Commit() {
	s.frameRing.Commit()
}

// Allocator allocates table frames.
type Allocator struct {
	state *State
}

// Allocate returns the physical address of a free frame.
func (a *Allocator) Allocate() (types.PhysicalAddress, error) {
	return a.state.frameRing.Get()
}

// Deallocator returns frames to the window.
type Deallocator struct {
	state *State
}

// Deallocate erases the frame and queues it for reuse. Queued frames become
// allocatable on the next Commit. The zero address is ignored, it is never a
// live table.
func (d *Deallocator) Deallocate(address types.PhysicalAddress) {
	if address == 0 {
		return
	}

	d.state.Clear(address)
	d.state.frameRing.Put(address)
}
