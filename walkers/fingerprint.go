package walkers

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/zeebo/blake3"

	"github.com/outofforest/pagewalk"
	"github.com/outofforest/pagewalk/types"
)

// NewFingerprint creates a fingerprint walker.
func NewFingerprint() *Fingerprint {
	return &Fingerprint{
		digest: blake3.New(),
	}
}

// Fingerprint computes a digest of the structure of a hierarchy: the visit
// order, presence and permissions of every entry, but not the physical
// placement of the tables. Structurally identical hierarchies located at
// different physical addresses produce the same digest.
type Fingerprint struct {
	digest *blake3.Hasher
}

// Hooks returns the hook set feeding the digest.
func (f *Fingerprint) Hooks(resolve pagewalk.ResolveFunc) pagewalk.Hooks {
	return pagewalk.Hooks{
		Resolve:   resolve,
		PML4Entry: f.entry(types.LevelPML4),
		PDPTEntry: f.entry(types.LevelPDPT),
		PDEntry:   f.entry(types.LevelPD),
		PTEntry:   f.entry(types.LevelPT),
	}
}

// Sum returns the digest of the entries visited so far.
func (f *Fingerprint) Sum() [32]byte {
	var sum [32]byte
	copy(sum[:], f.digest.Sum(nil))
	return sum
}

func (f *Fingerprint) entry(level types.Level) pagewalk.EntryHook {
	return func(w *pagewalk.Walker, entry types.Entry) error {
		// Each entry contributes a fixed-width 8-byte hash of its level and
		// permission bits to the digest.
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[:8], uint64(level))
		binary.LittleEndian.PutUint64(buf[8:], uint64(entry.Flags()))

		var contribution [8]byte
		binary.LittleEndian.PutUint64(contribution[:], xxhash.Sum64(buf[:]))
		_, _ = f.digest.Write(contribution[:])

		return w.DescendEntry(level, entry)
	}
}
