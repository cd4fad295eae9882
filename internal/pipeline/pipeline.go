// Package pipeline turns captured frames into attendance events.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/cooldown"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/population"
)

// FaceDetector is the external encoder: faces and embeddings for one encoded image.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]facematch.Face, error)
}

// Recorder is the durable attendance log.
type Recorder interface {
	HasRecentEvent(ctx context.Context, personID string, at time.Time, window time.Duration) (bool, error)
	Record(ctx context.Context, personID string, at time.Time, confidence float64) (attendance.Event, error)
}

// Spooler keeps events whose durable write failed.
type Spooler interface {
	Put(ev attendance.Event) error
}

// Population publishes the snapshot each frame is matched against.
type Population interface {
	Snapshot() *population.Snapshot
}

// Config holds the tunables of the loop.
type Config struct {
	Stride          int     // process 1 of every Stride frames
	Scale           float64 // downscale before detection; boxes are scaled back
	ConfidenceFloor float64
	DuplicateWindow time.Duration
}

// Deps are the collaborators of a pipeline. Spool may be nil.
type Deps struct {
	Source     capture.Source
	Detector   FaceDetector
	Engine     *facematch.Engine
	Population Population
	Guard      *cooldown.Guard
	Recorder   Recorder
	Spool      Spooler
}

// FaceResult describes the handling of one detected face.
type FaceResult struct {
	BBox       []float64
	PersonID   string
	Confidence float64
	Outcome    Outcome
	EventID    string
}

// Pipeline is one capture loop. Several pipelines may share a population and a guard.
type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	stats  counters
}

// New creates a pipeline. A non-positive stride processes every frame.
func New(deps Deps, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.Stride <= 0 {
		cfg.Stride = 1
	}
	return &Pipeline{deps: deps, cfg: cfg, logger: logging.OrNop(logger)}
}

// Stats returns the current counters.
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

// Run reads frames until the context is cancelled or the source is exhausted.
// Both end the loop without error. Per-frame failures are logged and counted.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		zap.String("source", p.deps.Source.Name()),
		zap.Int("stride", p.cfg.Stride),
		zap.Float64("confidence_floor", p.cfg.ConfidenceFloor))

	readErrors := 0
	for {
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopped", zap.String("reason", "context cancelled"))
			return nil
		}

		frame, err := p.deps.Source.Read(ctx)
		switch {
		case err == nil:
			readErrors = 0
		case errors.Is(err, io.EOF):
			p.logger.Info("pipeline stopped", zap.String("reason", "source exhausted"))
			return nil
		case ctx.Err() != nil:
			p.logger.Info("pipeline stopped", zap.String("reason", "context cancelled"))
			return nil
		default:
			p.stats.readErrors.Add(1)
			readErrors++
			p.logger.Warn("failed to read frame", zap.Error(err), zap.Int("consecutive", readErrors))
			if readErrors >= constants.MaxConsecutiveReadErrors {
				return fmt.Errorf("capture source failing: %w", err)
			}
			if !errors.Is(err, capture.ErrBadFrame) {
				sleep(ctx, constants.ReadErrorBackoff)
			}
			continue
		}

		n := p.stats.framesRead.Add(1)
		if n%int64(p.cfg.Stride) != 0 {
			p.stats.framesSkipped.Add(1)
			continue
		}

		if _, err := p.ProcessFrame(ctx, frame); err != nil {
			p.logger.Warn("failed to process frame", zap.String("frame", frame.Name), zap.Error(err))
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ProcessFrame detects, matches and records every face in one frame.
// All faces are matched against the same population snapshot.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame capture.Frame) ([]FaceResult, error) {
	p.stats.framesProcessed.Add(1)

	small := capture.Downscale(frame.Image, p.cfg.Scale)
	data, err := capture.EncodeJPEG(small)
	if err != nil {
		p.stats.framesFailed.Add(1)
		return nil, err
	}

	faces, err := p.deps.Detector.DetectFaces(ctx, data)
	if err != nil {
		p.stats.framesFailed.Add(1)
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	if len(faces) == 0 {
		return nil, nil
	}
	p.stats.faces.Add(int64(len(faces)))

	if p.cfg.Scale > 0 && p.cfg.Scale < 1 {
		for i := range faces {
			faces[i].BBox = facematch.ScaleBBox(faces[i].BBox, 1/p.cfg.Scale)
		}
	}

	at := frame.At
	if at.IsZero() {
		at = time.Now()
	}

	snap := p.deps.Population.Snapshot()
	matches := p.deps.Engine.MatchFrame(snap, faces)

	results := make([]FaceResult, len(matches))
	for i, m := range matches {
		results[i] = p.handle(ctx, m, at)
		p.stats.count(results[i].Outcome)
	}
	return results, nil
}

func (p *Pipeline) handle(ctx context.Context, m facematch.FaceMatch, at time.Time) FaceResult {
	res := FaceResult{
		BBox:       m.BBox,
		PersonID:   m.Result.PersonID,
		Confidence: m.Result.Confidence,
	}
	log := p.logger.With(zap.String("person", res.PersonID), zap.Float64("confidence", logging.Confidence(res.Confidence)))

	if m.Err != nil {
		log.Warn("face could not be matched", zap.Error(m.Err))
		res.Outcome = OutcomeUnknown
		return res
	}
	if m.Result.IsUnknown() {
		res.Outcome = OutcomeUnknown
		return res
	}
	if res.Confidence < p.cfg.ConfidenceFloor {
		log.Debug("match below confidence floor")
		res.Outcome = OutcomeBelowFloor
		return res
	}
	prev, ok := p.deps.Guard.TryAccept(res.PersonID, at)
	if !ok {
		log.Debug("suppressed by cooldown")
		res.Outcome = OutcomeSuppressed
		return res
	}

	recent, err := p.deps.Recorder.HasRecentEvent(ctx, res.PersonID, at, p.cfg.DuplicateWindow)
	if err != nil {
		log.Warn("recent attendance check failed, relying on the recorder", zap.Error(err))
	}
	if recent {
		return p.duplicate(log, res, at, prev)
	}

	ev, err := p.deps.Recorder.Record(ctx, res.PersonID, at, res.Confidence)
	switch {
	case err == nil:
		res.EventID = ev.ID
		res.Outcome = OutcomeRecorded
	case errors.Is(err, attendance.ErrDuplicate):
		return p.duplicate(log, res, at, prev)
	default:
		// The cooldown stays reserved after a durability failure.
		log.Error("failed to record attendance", zap.String("event_id", ev.ID), zap.Error(err))
		res.EventID = ev.ID
		res.Outcome = OutcomeFailed
		p.spool(log, ev)
	}
	return res
}

// duplicate releases the cooldown reserved at instant at, since nothing was recorded.
func (p *Pipeline) duplicate(log *zap.Logger, res FaceResult, at, prev time.Time) FaceResult {
	p.deps.Guard.Restore(res.PersonID, at, prev)
	log.Info("attendance already recorded recently")
	res.Outcome = OutcomeDuplicate
	return res
}

func (p *Pipeline) spool(log *zap.Logger, ev attendance.Event) {
	if p.deps.Spool == nil {
		p.stats.lost.Add(1)
		log.Error("attendance event lost, no retry spool configured", zap.String("event_id", ev.ID), zap.Time("at", ev.At))
		return
	}
	if err := p.deps.Spool.Put(ev); err != nil {
		p.stats.lost.Add(1)
		log.Error("attendance event lost, retry spool failed",
			zap.String("event_id", ev.ID), zap.Time("at", ev.At), zap.Error(err))
		return
	}
	p.stats.spooled.Add(1)
	log.Warn("attendance event spooled for retry", zap.String("event_id", ev.ID))
}
