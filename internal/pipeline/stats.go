package pipeline

import "sync/atomic"

// Outcome is what happened to one detected face.
type Outcome string

const (
	OutcomeUnknown    Outcome = "unknown"
	OutcomeBelowFloor Outcome = "below_floor"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeRecorded   Outcome = "recorded"
	OutcomeFailed     Outcome = "failed"
)

// Stats is a point-in-time copy of the pipeline counters.
type Stats struct {
	FramesRead      int64 `json:"frames_read"`
	FramesProcessed int64 `json:"frames_processed"`
	FramesSkipped   int64 `json:"frames_skipped"`
	FramesFailed    int64 `json:"frames_failed"`
	ReadErrors      int64 `json:"read_errors"`
	Faces           int64 `json:"faces"`
	Unknown         int64 `json:"unknown"`
	BelowFloor      int64 `json:"below_floor"`
	Suppressed      int64 `json:"suppressed"`
	Duplicate       int64 `json:"duplicate"`
	Recorded        int64 `json:"recorded"`
	Failed          int64 `json:"failed"`
	Spooled         int64 `json:"spooled"`
	Lost            int64 `json:"lost"`
}

type counters struct {
	framesRead      atomic.Int64
	framesProcessed atomic.Int64
	framesSkipped   atomic.Int64
	framesFailed    atomic.Int64
	readErrors      atomic.Int64
	faces           atomic.Int64
	unknown         atomic.Int64
	belowFloor      atomic.Int64
	suppressed      atomic.Int64
	duplicate       atomic.Int64
	recorded        atomic.Int64
	failed          atomic.Int64
	spooled         atomic.Int64
	lost            atomic.Int64
}

func (c *counters) count(o Outcome) {
	switch o {
	case OutcomeUnknown:
		c.unknown.Add(1)
	case OutcomeBelowFloor:
		c.belowFloor.Add(1)
	case OutcomeSuppressed:
		c.suppressed.Add(1)
	case OutcomeDuplicate:
		c.duplicate.Add(1)
	case OutcomeRecorded:
		c.recorded.Add(1)
	case OutcomeFailed:
		c.failed.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		FramesRead:      c.framesRead.Load(),
		FramesProcessed: c.framesProcessed.Load(),
		FramesSkipped:   c.framesSkipped.Load(),
		FramesFailed:    c.framesFailed.Load(),
		ReadErrors:      c.readErrors.Load(),
		Faces:           c.faces.Load(),
		Unknown:         c.unknown.Load(),
		BelowFloor:      c.belowFloor.Load(),
		Suppressed:      c.suppressed.Load(),
		Duplicate:       c.duplicate.Load(),
		Recorded:        c.recorded.Load(),
		Failed:          c.failed.Load(),
		Spooled:         c.spooled.Load(),
		Lost:            c.lost.Load(),
	}
}
