package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/cooldown"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

type fakeStats pipeline.Stats

func (f fakeStats) Stats() pipeline.Stats { return pipeline.Stats(f) }

type fakePopulation map[string]int

func (f fakePopulation) Counts() map[string]int { return f }

func testDeps() (Deps, *cooldown.Guard, *mock.MockAttendanceStore) {
	guard := cooldown.New(5 * time.Minute)
	store := mock.NewMockAttendanceStore()
	return Deps{
		Pipeline:   fakeStats{FramesRead: 30, FramesProcessed: 10, Recorded: 2},
		Population: fakePopulation{"bob": 1, "alice": 2},
		Cooldown:   guard,
		Attendance: store,
	}, guard, store
}

func TestStatusHandler_Stats(t *testing.T) {
	deps, guard, _ := testDeps()
	guard.RecordAccept("alice", time.Now())
	handler := NewStatusHandler(deps)

	recorder := httptest.NewRecorder()
	handler.Stats(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var stats StatsResponse
	parseJSONResponse(t, recorder, &stats)

	if stats.Pipeline.FramesProcessed != 10 || stats.Pipeline.Recorded != 2 {
		t.Errorf("unexpected pipeline stats: %+v", stats.Pipeline)
	}
	if stats.Identities != 2 || stats.Embeddings != 3 {
		t.Errorf("expected 2 identities / 3 embeddings, got %d / %d", stats.Identities, stats.Embeddings)
	}
	if stats.CooldownSize != 1 {
		t.Errorf("expected 1 cooldown entry, got %d", stats.CooldownSize)
	}
}

func TestStatusHandler_Identities_Sorted(t *testing.T) {
	deps, _, _ := testDeps()
	handler := NewStatusHandler(deps)

	recorder := httptest.NewRecorder()
	handler.Identities(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var ids []IdentityResponse
	parseJSONResponse(t, recorder, &ids)

	if len(ids) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(ids))
	}
	if ids[0].PersonID != "alice" || ids[0].Embeddings != 2 {
		t.Errorf("unexpected first identity: %+v", ids[0])
	}
}

func TestStatusHandler_ResetCooldown(t *testing.T) {
	deps, guard, _ := testDeps()
	now := time.Now()
	guard.RecordAccept("alice", now)
	guard.RecordAccept("bob", now)
	handler := NewStatusHandler(deps)

	recorder := httptest.NewRecorder()
	handler.ResetCooldown(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/cooldown/reset", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var body map[string]int
	parseJSONResponse(t, recorder, &body)
	if body["cleared"] != 2 {
		t.Errorf("expected cleared=2, got %d", body["cleared"])
	}
	if !guard.ShouldAccept("alice", now) {
		t.Error("alice should be eligible after reset")
	}
}

func TestStatusHandler_Attendance(t *testing.T) {
	deps, _, store := testDeps()
	store.AddRecord(database.AttendanceRecord{
		ID: "e1", Name: "alice", Date: "2024-03-04",
		Timestamp: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), Confidence: 1.2,
	})
	store.AddRecord(database.AttendanceRecord{
		ID: "e2", Name: "bob", Date: "2024-03-05",
		Timestamp: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), Confidence: 0.8,
	})
	handler := NewStatusHandler(deps)

	recorder := httptest.NewRecorder()
	handler.Attendance(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/attendance?date=2024-03-04", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var rows []AttendanceResponse
	parseJSONResponse(t, recorder, &rows)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].PersonID != "alice" {
		t.Errorf("expected alice, got %s", rows[0].PersonID)
	}
	if rows[0].Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %v", rows[0].Confidence)
	}
}

func TestStatusHandler_Attendance_Errors(t *testing.T) {
	t.Run("bad date", func(t *testing.T) {
		deps, _, _ := testDeps()
		recorder := httptest.NewRecorder()
		NewStatusHandler(deps).Attendance(recorder,
			httptest.NewRequest(http.MethodGet, "/api/v1/attendance?date=04.03.2024", nil))
		assertStatusCode(t, recorder, http.StatusBadRequest)
	})

	t.Run("store failure", func(t *testing.T) {
		deps, _, store := testDeps()
		store.ListError = errors.New("connection reset")
		recorder := httptest.NewRecorder()
		NewStatusHandler(deps).Attendance(recorder,
			httptest.NewRequest(http.MethodGet, "/api/v1/attendance?date=2024-03-04", nil))
		assertStatusCode(t, recorder, http.StatusInternalServerError)
		assertJSONError(t, recorder, "failed to list attendance")
	})

	t.Run("no store", func(t *testing.T) {
		deps, _, _ := testDeps()
		deps.Attendance = nil
		recorder := httptest.NewRecorder()
		NewStatusHandler(deps).Attendance(recorder,
			httptest.NewRequest(http.MethodGet, "/api/v1/attendance", nil))
		assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	})
}
