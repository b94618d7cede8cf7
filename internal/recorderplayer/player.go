package recorderplayer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/vrrop/vrrop/internal/fsutil"
	"github.com/vrrop/vrrop/internal/timeutil"
	"github.com/vrrop/vrrop/internal/wire"
)

// Player replays a bag written by Recorder, remapping each entry's
// recorded stamp onto live wall-clock time relative to when playback
// started.
type Player struct {
	fs      fsutil.FileSystem
	dir     string
	clock   timeutil.Clock
	entries []Entry

	firstStamp   int64
	startInstant time.Time
	started      bool
	cursor       int
}

// NewPlayer loads dir's entries.jsonl eagerly into memory.
func NewPlayer(fs fsutil.FileSystem, dir string, clock timeutil.Clock) (*Player, error) {
	raw, err := fs.ReadFile(filepath.Join(dir, entriesFileName))
	if err != nil {
		return nil, fmt.Errorf("recorderplayer: read entries log: %w", err)
	}

	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("recorderplayer: parse entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("recorderplayer: scan entries log: %w", err)
	}

	p := &Player{fs: fs, dir: dir, clock: clock, entries: entries}
	if len(entries) > 0 {
		p.firstStamp = entries[0].StampUnixNanos
	}
	return p, nil
}

// TotalEvents reports how many entries the bag holds.
func (p *Player) TotalEvents() int { return len(p.entries) }

// Remaining reports how many entries have not yet been consumed by
// NextEvent.
func (p *Player) Remaining() int { return len(p.entries) - p.cursor }

// Start marks the playback start instant. Subsequent PollNextEventTime
// and NextEvent calls remap recorded stamps relative to this instant.
func (p *Player) Start() {
	p.startInstant = p.clock.Now()
	p.started = true
}

// PollNextEventTime returns the live wall-clock instant at which the
// next unconsumed entry should fire, and false if the bag is exhausted.
// Callers sleep until this instant, then call NextEvent, giving accurate
// inter-event pacing independent of absolute time.
func (p *Player) PollNextEventTime() (time.Time, bool) {
	if !p.started || p.cursor >= len(p.entries) {
		return time.Time{}, false
	}
	offset := time.Duration(p.entries[p.cursor].StampUnixNanos - p.firstStamp)
	return p.startInstant.Add(offset), true
}

// NextEvent advances the cursor and materializes the next event, with
// its odometry stamp remapped into live wall-clock time. Returns io.EOF
// once the bag is exhausted.
func (p *Player) NextEvent() (Event, error) {
	if p.cursor >= len(p.entries) {
		return Event{}, io.EOF
	}
	entry := p.entries[p.cursor]
	p.cursor++

	liveStamp := p.startInstant.Add(time.Duration(entry.StampUnixNanos - p.firstStamp)).UnixNano()

	switch entry.Kind {
	case EntryOdometry:
		o := entry.Odometry
		o.StampUnixNanos = liveStamp
		return Event{Odometry: &o}, nil
	case EntryImages:
		colorJPEG, err := p.fs.ReadFile(filepath.Join(p.dir, entry.ColorPath))
		if err != nil {
			return Event{}, fmt.Errorf("recorderplayer: read color image: %w", err)
		}
		depthPNG, err := p.fs.ReadFile(filepath.Join(p.dir, entry.DepthPath))
		if err != nil {
			return Event{}, fmt.Errorf("recorderplayer: read depth image: %w", err)
		}
		o := entry.Odometry
		o.StampUnixNanos = liveStamp
		msg := wire.EncodedImagesMessage{
			Odometry:        o,
			ColorIntrinsics: entry.ColorIntrinsics,
			DepthIntrinsics: entry.DepthIntrinsics,
			DepthUnit:       entry.DepthUnit,
			ColorJPEG:       colorJPEG,
			DepthPNG:        depthPNG,
		}
		return Event{Images: &msg}, nil
	default:
		return Event{}, fmt.Errorf("recorderplayer: unknown entry kind %q", entry.Kind)
	}
}
