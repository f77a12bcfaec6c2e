// Package model holds the value types shared across the deduplication
// pipeline (spec.md §3). FileIndex is the only owner of persistent rows;
// every other package passes these types around as plain value copies —
// no shared mutable references cross package boundaries (spec.md §9).
package model

import (
	"time"

	"github.com/google/uuid"
)

// MediaClass is the coarse media type a File was classified into.
type MediaClass int

const (
	ClassUnknown MediaClass = iota
	ClassPhoto
	ClassVideo
	ClassAudio
)

func (c MediaClass) String() string {
	switch c {
	case ClassPhoto:
		return "photo"
	case ClassVideo:
		return "video"
	case ClassAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// File is the durable identity of a scanned path (spec.md §3 "File").
type File struct {
	ID          uuid.UUID
	Path        string
	Size        int64
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Class       MediaClass
	ContentType string
	LastScanned time.Time
	Inode       uint64
}

// MediaMetadata is the normalized metadata extracted for a File.
type MediaMetadata struct {
	FileID      uuid.UUID
	FileName    string
	FileSize    int64
	MediaClass  MediaClass
	CreatedAt   time.Time
	ModifiedAt  time.Time
	CaptureDate time.Time
	Width       int
	Height      int
	DurationSec float64
	CameraModel string
	GPSLat      *float64
	GPSLon      *float64
	Keywords    []string
	Tags        []string
	ContentType string
}

// HashAlgorithm names a supported image-hash algorithm (spec.md §4.4).
type HashAlgorithm int

const (
	AlgorithmDHash HashAlgorithm = iota
	AlgorithmPHash
)

func (a HashAlgorithm) String() string {
	if a == AlgorithmPHash {
		return "pHash"
	}
	return "dHash"
}

// ImageSignature is the perceptual-hash record for one (fileId, algorithm)
// pair (spec.md §3 "ImageSignature").
type ImageSignature struct {
	FileID      uuid.UUID
	Algorithm   HashAlgorithm
	Hash        uint64
	Width       int
	Height      int
	ComputedAt  time.Time
}

// VideoSignature is the multi-frame fingerprint for a video file (spec.md §3
// "VideoSignature"). len(FrameHashes) == len(SampleTimesSec) always.
type VideoSignature struct {
	FileID         uuid.UUID
	DurationSec    float64
	Width          int
	Height         int
	FrameHashes    []uint64
	SampleTimesSec []float64
	Incomplete     bool
}

// SignalKind names one of the positive clustering signals (spec.md §4.6).
type SignalKind int

const (
	SignalExactBytes SignalKind = iota
	SignalDHashClose
	SignalVideoFrameMatch
	SignalDimensions
	SignalDurationMatch
	SignalCaptureTimeClose
	SignalFilenameSimilar
)

func (s SignalKind) String() string {
	switch s {
	case SignalExactBytes:
		return "ExactBytes"
	case SignalDHashClose:
		return "dHashClose"
	case SignalVideoFrameMatch:
		return "VideoFrameMatch"
	case SignalDimensions:
		return "Dimensions"
	case SignalDurationMatch:
		return "DurationMatch"
	case SignalCaptureTimeClose:
		return "CaptureTimeClose"
	case SignalFilenameSimilar:
		return "FilenameSimilar"
	default:
		return "Unknown"
	}
}

// PenaltyKind names one of the subtractive contradiction penalties (spec.md §4.6).
type PenaltyKind int

const (
	PenaltyMediaClassMismatch PenaltyKind = iota
	PenaltyAspectRatioDivergence
	PenaltyHugeSizeDelta
)

func (p PenaltyKind) String() string {
	switch p {
	case PenaltyMediaClassMismatch:
		return "MediaClassMismatch"
	case PenaltyAspectRatioDivergence:
		return "AspectRatioDivergence"
	case PenaltyHugeSizeDelta:
		return "HugeSizeDelta"
	default:
		return "Unknown"
	}
}

// Signal is a single firing positive signal between two group members,
// carried in GroupMember.Signals for rationale rendering.
type Signal struct {
	Kind   SignalKind
	Weight float64
	With   uuid.UUID // the other file this signal fired against
}

// Penalty is a single firing contradiction, carried in GroupMember.Penalties.
type Penalty struct {
	Kind   PenaltyKind
	Weight float64
	With   uuid.UUID
}

// GroupMember is one file's participation in a DuplicateGroup.
type GroupMember struct {
	FileID           uuid.UUID
	Confidence       float64
	Signals          []Signal
	Penalties        []Penalty
	KeeperSuggestion bool
}

// GroupState is the lifecycle state of a DuplicateGroup (spec.md §4.6).
type GroupState int

const (
	GroupOpen GroupState = iota
	GroupComplete
	GroupPlanned
	GroupAbandoned
	GroupMerged
	GroupUndone
)

func (s GroupState) String() string {
	switch s {
	case GroupOpen:
		return "Open"
	case GroupComplete:
		return "Complete"
	case GroupPlanned:
		return "Planned"
	case GroupAbandoned:
		return "Abandoned"
	case GroupMerged:
		return "Merged"
	case GroupUndone:
		return "Undone"
	default:
		return "Unknown"
	}
}

// DuplicateGroup is a connected component over the signal graph (spec.md §3).
type DuplicateGroup struct {
	ID         string
	MediaClass MediaClass
	Confidence float64
	Rationale  []string
	Incomplete bool
	State      GroupState
	Members    []GroupMember
}

// TransactionState is the lifecycle state of a MergeTransaction (spec.md §3).
type TransactionState int

const (
	TxCommitted TransactionState = iota
	TxUndone
	TxFailed
)

func (s TransactionState) String() string {
	switch s {
	case TxCommitted:
		return "committed"
	case TxUndone:
		return "undone"
	case TxFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MergeTransaction is the durable, reversible record of a committed merge
// (spec.md §3 "MergeTransaction").
type MergeTransaction struct {
	ID                  int64
	GroupID             string
	KeeperFileID        uuid.UUID
	RemovedFileIDs      []uuid.UUID
	CreatedAt           time.Time
	UndoDeadline        time.Time
	MetadataSnapshotJSON string
	State               TransactionState
	MovedToTrash        bool // policies.move_to_trash at commit time
}
