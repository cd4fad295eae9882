package cooldown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func TestGuard_FirstSightingIsEligible(t *testing.T) {
	g := New(5 * time.Minute)
	assert.True(t, g.ShouldAccept("alice", t0))
	assert.Equal(t, 0, g.Len(), "ShouldAccept must not record")
}

func TestGuard_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"same instant", 0, false},
		{"4m59s later", 4*time.Minute + 59*time.Second, false},
		{"exactly the window", 5 * time.Minute, true},
		{"5m01s later", 5*time.Minute + time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(5 * time.Minute)
			g.RecordAccept("bob", t0)
			assert.Equal(t, tt.want, g.ShouldAccept("bob", t0.Add(tt.elapsed)))
		})
	}
}

func TestGuard_RecordAcceptOverwrites(t *testing.T) {
	g := New(5 * time.Minute)
	g.RecordAccept("alice", t0)
	g.RecordAccept("alice", t0.Add(4*time.Minute))

	assert.False(t, g.ShouldAccept("alice", t0.Add(6*time.Minute)))
	assert.True(t, g.ShouldAccept("alice", t0.Add(9*time.Minute)))
}

func TestGuard_PersonsAreIndependent(t *testing.T) {
	g := New(5 * time.Minute)
	g.RecordAccept("alice", t0)
	assert.True(t, g.ShouldAccept("bob", t0))
}

func TestGuard_TryAccept(t *testing.T) {
	g := New(5 * time.Minute)

	prev, ok := g.TryAccept("bob", t0)
	assert.True(t, ok)
	assert.True(t, prev.IsZero())

	_, ok = g.TryAccept("bob", t0.Add(4*time.Minute+59*time.Second))
	assert.False(t, ok)

	prev, ok = g.TryAccept("bob", t0.Add(5*time.Minute+time.Second))
	assert.True(t, ok)
	assert.True(t, prev.Equal(t0))
}

func TestGuard_Restore(t *testing.T) {
	g := New(5 * time.Minute)

	at := t0.Add(time.Minute)
	prev, ok := g.TryAccept("alice", at)
	require.True(t, ok)
	g.Restore("alice", at, prev)
	assert.Equal(t, 0, g.Len())
	assert.True(t, g.ShouldAccept("alice", at.Add(time.Second)))

	g.RecordAccept("bob", t0)
	later := t0.Add(6 * time.Minute)
	prev, ok = g.TryAccept("bob", later)
	require.True(t, ok)
	g.Restore("bob", later, prev)
	assert.True(t, g.ShouldAccept("bob", later))
	assert.False(t, g.ShouldAccept("bob", t0.Add(4*time.Minute)))
}

func TestGuard_RestoreKeepsNewerAcceptance(t *testing.T) {
	g := New(5 * time.Minute)

	prev, ok := g.TryAccept("alice", t0)
	require.True(t, ok)
	g.Reset()
	g.RecordAccept("alice", t0.Add(time.Second))

	g.Restore("alice", t0, prev)
	assert.Equal(t, 1, g.Len())
	assert.False(t, g.ShouldAccept("alice", t0.Add(time.Minute)))
}

func TestGuard_TryAcceptConcurrent(t *testing.T) {
	g := New(5 * time.Minute)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := g.TryAccept("alice", t0); ok {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
}

func TestGuard_Reset(t *testing.T) {
	g := New(5 * time.Minute)
	g.RecordAccept("alice", t0)
	g.RecordAccept("bob", t0)
	assert.Equal(t, 2, g.Len())

	g.Reset()

	assert.Equal(t, 0, g.Len())
	assert.True(t, g.ShouldAccept("alice", t0.Add(time.Second)))
	assert.True(t, g.ShouldAccept("bob", t0.Add(time.Second)))
}
