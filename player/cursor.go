package player

import (
	"math"

	"tactus/song"
)

// noPitch marks a cursor whose voice is not currently sounding.
const noPitch = math.MinInt32

// cursor is the mutable playback position of one voice. lastPitch records
// the sounding (post-transposition) pitch of the current note so the
// matching note-off is emitted even if the transposition changes mid-note.
type cursor struct {
	pos       int // index of the next entry to start
	remaining int // ticks left in the current entry
	lastPitch int
}

// cursorTable is a flat arena of cursors keyed by (track, voice), replacing
// the co-indexed parallel arrays such per-voice state tends to grow into.
type cursorTable struct {
	offsets []int
	cursors []cursor
}

func newCursorTable(arr song.Arrangement) *cursorTable {
	t := &cursorTable{offsets: make([]int, len(arr))}
	n := 0
	for i, e := range arr {
		t.offsets[i] = n
		n += len(e.Track.Voices)
	}
	t.cursors = make([]cursor, n)
	t.reset()
	return t
}

// at returns the cursor for the given track and voice index.
func (t *cursorTable) at(track, voice int) *cursor {
	return &t.cursors[t.offsets[track]+voice]
}

// reset rewinds every cursor to the start of the song.
func (t *cursorTable) reset() {
	for i := range t.cursors {
		t.cursors[i] = cursor{lastPitch: noPitch}
	}
}
