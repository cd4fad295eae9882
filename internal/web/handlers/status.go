package handlers

import (
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// StatsSource exposes the pipeline counters.
type StatsSource interface {
	Stats() pipeline.Stats
}

// Population exposes the registered identities.
type Population interface {
	Counts() map[string]int
}

// Cooldown is the operator view of the cooldown guard.
type Cooldown interface {
	Len() int
	Reset()
}

// Deps are the components the control surface reports on. Attendance may be nil.
type Deps struct {
	Pipeline   StatsSource
	Population Population
	Cooldown   Cooldown
	Attendance database.AttendanceReader
	Logger     *zap.Logger
}

// StatusHandler serves the runtime status of the recognition process.
type StatusHandler struct {
	deps      Deps
	logger    *zap.Logger
	startedAt time.Time
}

// NewStatusHandler creates a status handler
func NewStatusHandler(deps Deps) *StatusHandler {
	return &StatusHandler{deps: deps, logger: logging.OrNop(deps.Logger), startedAt: time.Now()}
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	Pipeline      pipeline.Stats `json:"pipeline"`
	CooldownSize  int            `json:"cooldown_entries"`
	Identities    int            `json:"identities"`
	Embeddings    int            `json:"embeddings"`
	UptimeSeconds int64          `json:"uptime_seconds"`
}

// Stats returns pipeline counters, guard size and population size.
func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		CooldownSize:  h.deps.Cooldown.Len(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}
	if h.deps.Pipeline != nil {
		resp.Pipeline = h.deps.Pipeline.Stats()
	}
	for _, n := range h.deps.Population.Counts() {
		resp.Identities++
		resp.Embeddings += n
	}
	respondJSON(w, http.StatusOK, resp)
}

// IdentityResponse is one registered identity.
type IdentityResponse struct {
	PersonID   string `json:"person_id"`
	Embeddings int    `json:"embeddings"`
}

// Identities lists the registered identities sorted by person id.
func (h *StatusHandler) Identities(w http.ResponseWriter, r *http.Request) {
	counts := h.deps.Population.Counts()
	out := make([]IdentityResponse, 0, len(counts))
	for id, n := range counts {
		out = append(out, IdentityResponse{PersonID: id, Embeddings: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	respondJSON(w, http.StatusOK, out)
}

// ResetCooldown makes every person eligible again.
func (h *StatusHandler) ResetCooldown(w http.ResponseWriter, r *http.Request) {
	cleared := h.deps.Cooldown.Len()
	h.deps.Cooldown.Reset()
	h.logger.Info("cooldown reset by operator",
		zap.Int("cleared", cleared),
		zap.String("remote", sanitizeForLog(r.RemoteAddr)))
	respondJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

// AttendanceResponse is one durable attendance row.
type AttendanceResponse struct {
	ID         string    `json:"id"`
	PersonID   string    `json:"person_id"`
	Timestamp  time.Time `json:"timestamp"`
	Date       string    `json:"date"`
	Confidence float64   `json:"confidence"`
}

// Attendance lists the events of one day (?date=YYYY-MM-DD, today by default).
func (h *StatusHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	if h.deps.Attendance == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance store not configured")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format(attendance.DateLayout)
	}
	if _, err := time.Parse(attendance.DateLayout, date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	records, err := h.deps.Attendance.ListAttendance(r.Context(), date)
	if err != nil {
		h.logger.Error("failed to list attendance", zap.String("date", date), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	out := make([]AttendanceResponse, len(records))
	for i, rec := range records {
		out[i] = AttendanceResponse{
			ID:         rec.ID,
			PersonID:   rec.Name,
			Timestamp:  rec.Timestamp,
			Date:       rec.Date,
			Confidence: logging.Confidence(rec.Confidence),
		}
	}
	respondJSON(w, http.StatusOK, out)
}
