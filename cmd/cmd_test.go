package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/population"
)

func TestCheckRegistrationFaces(t *testing.T) {
	big := facematch.Face{BBox: []float64{0, 0, 150, 160}, Embedding: facematch.Embedding{1}}
	small := facematch.Face{BBox: []float64{0, 0, 80, 90}, Embedding: facematch.Embedding{2}}

	tests := []struct {
		name    string
		faces   []facematch.Face
		strict  bool
		want    float32
		wantErr bool
	}{
		{"no faces", nil, false, 0, true},
		{"first face lenient", []facematch.Face{small, big}, false, 2, false},
		{"several faces strict", []facematch.Face{big, big}, true, 0, true},
		{"small face strict", []facematch.Face{small}, true, 0, true},
		{"one big face strict", []facematch.Face{big}, true, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checkRegistrationFaces(tt.faces, tt.strict, 100)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkRegistrationFaces() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.Embedding[0] != tt.want {
				t.Errorf("picked embedding %v, want %v", got.Embedding[0], tt.want)
			}
		})
	}
}

func TestSimilarIdentities(t *testing.T) {
	known := []string{"Jiří Novák", "alice", "Bob"}

	got := similarIdentities("jiri novak", known)
	if len(got) != 1 || got[0] != "Jiří Novák" {
		t.Errorf("similarIdentities() = %v", got)
	}
	if got := similarIdentities("alice", known); len(got) != 0 {
		t.Errorf("exact name must not be reported, got %v", got)
	}
}

func TestCollectImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	single := filepath.Join(t.TempDir(), "c.jpeg")
	if err := os.WriteFile(single, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := collectImages([]string{dir, single})
	if err != nil {
		t.Fatalf("collectImages() error = %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %v", files)
	}
	if filepath.Base(files[0]) != "a.png" || files[2] != single {
		t.Errorf("unexpected order: %v", files)
	}

	if _, err := collectImages([]string{filepath.Join(dir, "missing.jpg")}); err == nil {
		t.Error("expected error for a missing path")
	}
	if _, err := collectImages([]string{t.TempDir()}); err == nil {
		t.Error("expected error for an empty directory")
	}
}

func TestMergeUsers(t *testing.T) {
	users := []database.User{
		{ID: 1, Name: "carol", Email: "carol@example.com"},
		{ID: 2, Name: "alice"},
	}
	counts := map[string]int{"alice": 2, "bob": 1}

	got := mergeUsers(users, counts)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	want := []UserStatus{
		{Name: "alice", Embeddings: 2, InDirectory: true},
		{Name: "bob", Embeddings: 1},
		{Name: "carol", Email: "carol@example.com", InDirectory: true},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPersisterFor(t *testing.T) {
	cfg := config.Defaults()
	cfg.Population.Path = filepath.Join(t.TempDir(), "population.gob")

	p, err := persisterFor(cfg, "file", nil)
	if err != nil {
		t.Fatalf("file persister: %v", err)
	}
	if _, ok := p.(*population.FilePersister); !ok {
		t.Errorf("expected *population.FilePersister, got %T", p)
	}

	if _, err := persisterFor(cfg, "postgres", nil); err == nil {
		t.Error("expected error for postgres without a database")
	}
	if _, err := persisterFor(cfg, "postgres", &database.Backend{}); err == nil {
		t.Error("expected error for a backend without population storage")
	}

	p, err = persisterFor(cfg, "postgres", &database.Backend{Population: mock.NewMockPopulationStore()})
	if err != nil {
		t.Fatalf("postgres persister: %v", err)
	}
	if _, ok := p.(*population.DatabasePersister); !ok {
		t.Errorf("expected *population.DatabasePersister, got %T", p)
	}

	if _, err := persisterFor(cfg, "s3", nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestApplyRunFlags(t *testing.T) {
	cfg := config.Defaults()
	cfg.Capture.Source = "./frames"

	if err := runCmd.Flags().Set("camera-index", "1"); err != nil {
		t.Fatal(err)
	}
	if err := runCmd.Flags().Set("control-port", "8090"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		runCmd.Flags().Set("camera-index", "0")
		runCmd.Flags().Set("control-port", "0")
		runCmd.Flags().Lookup("camera-index").Changed = false
		runCmd.Flags().Lookup("control-port").Changed = false
	})

	applyRunFlags(runCmd, cfg)

	if cfg.Capture.CameraIndex != 1 {
		t.Errorf("expected camera index 1, got %d", cfg.Capture.CameraIndex)
	}
	if cfg.Control.Port != 8090 {
		t.Errorf("expected control port 8090, got %d", cfg.Control.Port)
	}
	if cfg.Capture.Source != "./frames" {
		t.Errorf("unset --source must not override, got %q", cfg.Capture.Source)
	}
}
