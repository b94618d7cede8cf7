// Package recorderplayer implements VRROP's bag record/replay format: an
// append-only newline-delimited JSON log of odometry and images events,
// with image payloads written as loose files alongside it (spec §4.7).
package recorderplayer

import "github.com/vrrop/vrrop/internal/wire"

// EntryKind discriminates Entry's two variants.
type EntryKind string

const (
	EntryOdometry EntryKind = "odometry"
	EntryImages   EntryKind = "images"
)

// Entry is one line of entries.jsonl. Odometry is always present (it is
// the event's own sample for an odometry entry, or the paired pose for
// an images entry); ColorPath/DepthPath are only set for images entries
// and are relative to the bag directory.
type Entry struct {
	Kind            EntryKind             `json:"kind"`
	StampUnixNanos  int64                 `json:"stamp_unix_nanos"`
	Odometry        wire.Odometry         `json:"odometry"`
	ColorPath       string                `json:"color_path,omitempty"`
	DepthPath       string                `json:"depth_path,omitempty"`
	ColorIntrinsics wire.CameraIntrinsics `json:"color_intrinsics,omitempty"`
	DepthIntrinsics wire.CameraIntrinsics `json:"depth_intrinsics,omitempty"`
	DepthUnit       float32               `json:"depth_unit,omitempty"`
}

// Event is one item materialized by Player.NextEvent: exactly one of the
// two fields is non-nil.
type Event struct {
	Odometry *wire.Odometry
	Images   *wire.EncodedImagesMessage
}
