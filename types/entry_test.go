package types

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestEntryClassification(t *testing.T) {
	requireT := require.New(t)

	frame, err := Entry(0).Frame()
	requireT.ErrorIs(err, ErrFrameAbsent)
	requireT.EqualValues(0, frame)

	// Stale frame bits without the present bit still classify as absent.
	frame, err = NewEntry(0x1000, 0).Frame()
	requireT.ErrorIs(err, ErrFrameAbsent)
	requireT.EqualValues(0, frame)

	e := NewEntry(0x2000, FlagPresent|FlagHuge)
	frame, err = e.Frame()
	requireT.ErrorIs(err, ErrHugeFrame)
	requireT.EqualValues(0, frame)
	requireT.EqualValues(0x2000, e.HugeFrame())

	frame, err = NewEntry(0x3000, FlagPresent|FlagWritable).Frame()
	requireT.NoError(err)
	requireT.EqualValues(0x3000, frame)

	// The two classifications are distinct.
	requireT.False(errors.Is(ErrFrameAbsent, ErrHugeFrame))
}

func TestEntryFrameMasking(t *testing.T) {
	requireT := require.New(t)

	// Flag bits passed as part of the frame address are dropped, and frame
	// bits passed as flags are dropped.
	e := NewEntry(0x1fff, FlagPresent)
	frame, err := e.Frame()
	requireT.NoError(err)
	requireT.EqualValues(0x1000, frame)
	requireT.Equal(FlagPresent, e.Flags())

	// Bits above 51 never make it into the frame address.
	e = NewEntry(PhysicalAddress(1)<<62|0x4000, FlagPresent)
	frame, err = e.Frame()
	requireT.NoError(err)
	requireT.EqualValues(0x4000, frame)
}

func TestEntryFlagOps(t *testing.T) {
	requireT := require.New(t)

	var e Entry
	e.SetFlags(FlagPresent | FlagWritable | FlagUser)
	requireT.True(e.HasFlags(FlagPresent | FlagWritable))
	requireT.True(e.HasFlags(FlagUser))
	requireT.False(e.HasFlags(FlagNoExecute))
	requireT.False(e.HasFlags(FlagPresent | FlagNoExecute))

	e.ClearFlags(FlagWritable)
	requireT.False(e.HasFlags(FlagWritable))
	requireT.True(e.HasFlags(FlagPresent))

	e.SetFrame(0x5000)
	frame, err := e.Frame()
	requireT.NoError(err)
	requireT.EqualValues(0x5000, frame)
	requireT.True(e.HasFlags(FlagPresent | FlagUser))

	e.Clear()
	requireT.Equal(Entry(0), e)
}

func TestLevels(t *testing.T) {
	requireT := require.New(t)

	requireT.Equal(LevelPDPT, LevelPML4.Next())
	requireT.Equal(LevelPD, LevelPDPT.Next())
	requireT.Equal(LevelPT, LevelPD.Next())

	requireT.Equal("PML4", LevelPML4.String())
	requireT.Equal("PT", LevelPT.String())

	requireT.EqualValues(39, LevelPML4.IndexShift())
	requireT.EqualValues(30, LevelPDPT.IndexShift())
	requireT.EqualValues(21, LevelPD.IndexShift())
	requireT.EqualValues(12, LevelPT.IndexShift())

	requireT.EqualValues(0, LevelPML4.PageSize())
	requireT.Equal(Size1GiB, LevelPDPT.PageSize())
	requireT.Equal(Size2MiB, LevelPD.PageSize())
	requireT.Equal(Size4KiB, LevelPT.PageSize())
}
