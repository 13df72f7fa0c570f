package domain

import (
	"time"
)

// CaptureState is the orchestrator's capture state
type CaptureState int

const (
	// Idle - capture is not running
	Idle CaptureState = iota
	// Armed - the scheduler is sampling frames
	Armed
	// CoolingDown - sampling is paused after a new code was found
	CoolingDown
)

// String returns the state name
func (s CaptureState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case CoolingDown:
		return "cooling_down"
	default:
		return "unknown"
	}
}

// ScanRecord is one detector result with a non-empty value
type ScanRecord struct {
	Value       string    `json:"value" msgpack:"value"`
	IsDuplicate bool      `json:"is_duplicate" msgpack:"is_duplicate"`
	FrameSeq    uint64    `json:"frame_seq" msgpack:"frame_seq"`
	At          time.Time `json:"at" msgpack:"at"`
}

// ScanEvent is emitted once per sampling tick that found at least one new code
type ScanEvent struct {
	SessionID string       `json:"session_id" msgpack:"session_id"`
	Codes     []string     `json:"codes" msgpack:"codes"`     // Non-duplicate codes in detector order
	Records   []ScanRecord `json:"records" msgpack:"records"` // Every record produced by the tick
	FrameSeq  uint64       `json:"frame_seq" msgpack:"frame_seq"`
	At        time.Time    `json:"at" msgpack:"at"`
}

// ScanStats holds pipeline counters
type ScanStats struct {
	Ticks           uint64 `json:"ticks"`
	Grabs           uint64 `json:"grabs"`
	Skips           uint64 `json:"skips"` // Ticks without a ready stream
	SampleErrors    uint64 `json:"sample_errors"`
	DetectionErrors uint64 `json:"detection_errors"`
	Records         uint64 `json:"records"`
	Notifications   uint64 `json:"notifications"`
	CooldownTrips   uint64 `json:"cooldown_trips"`
}

// Book is the catalog metadata resolved for a scanned code
type Book struct {
	ISBN          string `json:"isbn"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedYear int    `json:"published_year"`
}

// VideoDevice is a video capture device
type VideoDevice struct {
	ID    string // Unique device identifier
	Label string // Human readable device name
	Kind  string // Device kind
}

// VideoConfig holds the camera constraints
type VideoConfig struct {
	Width    int    // Preferred width in pixels
	Height   int    // Preferred height in pixels
	DeviceID string // Device to open, empty for the default one
}

// ScannerStatus is the observable state of the scanner
type ScannerStatus struct {
	State          string    `json:"state"`
	Ready          bool      `json:"ready"`
	Error          string    `json:"error,omitempty"`
	LastFrameError string    `json:"last_frame_error,omitempty"`
	SessionID      string    `json:"session_id"`
	Records        int       `json:"records"`
	DistinctCodes  int       `json:"distinct_codes"`
	Stats          ScanStats `json:"stats"`
}
