package recorderplayer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/vrrop/vrrop/internal/fsutil"
	"github.com/vrrop/vrrop/internal/security"
	"github.com/vrrop/vrrop/internal/wire"
)

const (
	entriesFileName = "entries.jsonl"
	imagesDirName   = "images"
)

// Recorder writes an append-only bag to dir: entries.jsonl plus one
// images/color_<ms>.jpg and images/depth_<ms>.png per images event,
// keyed by the event's odometry stamp.
type Recorder struct {
	fs  fsutil.FileSystem
	dir string

	entriesPath string
	buf         bytes.Buffer
}

// NewRecorder creates dir (and its images subdirectory) and returns a
// Recorder ready to append entries.
func NewRecorder(fs fsutil.FileSystem, dir string) (*Recorder, error) {
	if err := fs.MkdirAll(filepath.Join(dir, imagesDirName), 0o755); err != nil {
		return nil, fmt.Errorf("recorderplayer: create bag directory: %w", err)
	}
	return &Recorder{
		fs:          fs,
		dir:         dir,
		entriesPath: filepath.Join(dir, entriesFileName),
	}, nil
}

// RecordOdometry appends one odometry event.
func (r *Recorder) RecordOdometry(o wire.Odometry) error {
	return r.appendEntry(Entry{
		Kind:           EntryOdometry,
		StampUnixNanos: o.StampUnixNanos,
		Odometry:       o,
	})
}

// RecordImages writes the frame's color/depth payloads as loose files
// under images/, keyed by the frame's odometry stamp in milliseconds,
// and appends one images event referencing them.
func (r *Recorder) RecordImages(msg wire.EncodedImagesMessage) error {
	ms := msg.Odometry.StampUnixNanos / int64(1e6)
	colorRel := filepath.Join(imagesDirName, fmt.Sprintf("color_%d.jpg", ms))
	depthRel := filepath.Join(imagesDirName, fmt.Sprintf("depth_%d.png", ms))

	colorAbs := filepath.Join(r.dir, colorRel)
	depthAbs := filepath.Join(r.dir, depthRel)
	if err := security.ValidatePathWithinDirectory(colorAbs, r.dir); err != nil {
		return fmt.Errorf("recorderplayer: %w", err)
	}
	if err := security.ValidatePathWithinDirectory(depthAbs, r.dir); err != nil {
		return fmt.Errorf("recorderplayer: %w", err)
	}

	if err := r.fs.WriteFile(colorAbs, msg.ColorJPEG, 0o644); err != nil {
		return fmt.Errorf("recorderplayer: write color image: %w", err)
	}
	if err := r.fs.WriteFile(depthAbs, msg.DepthPNG, 0o644); err != nil {
		return fmt.Errorf("recorderplayer: write depth image: %w", err)
	}

	return r.appendEntry(Entry{
		Kind:            EntryImages,
		StampUnixNanos:  msg.Odometry.StampUnixNanos,
		Odometry:        msg.Odometry,
		ColorPath:       colorRel,
		DepthPath:       depthRel,
		ColorIntrinsics: msg.ColorIntrinsics,
		DepthIntrinsics: msg.DepthIntrinsics,
		DepthUnit:       msg.DepthUnit,
	})
}

func (r *Recorder) appendEntry(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("recorderplayer: marshal entry: %w", err)
	}
	r.buf.Write(line)
	r.buf.WriteByte('\n')

	if err := r.fs.WriteFile(r.entriesPath, r.buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("recorderplayer: write entries log: %w", err)
	}
	return nil
}
