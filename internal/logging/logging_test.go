package logging

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"console info", "info", "console", false},
		{"json debug", "debug", "json", false},
		{"empty format", "warn", "", false},
		{"bad level", "loud", "json", true},
		{"bad format", "info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
			}
			if err == nil && l == nil {
				t.Error("expected logger, got nil")
			}
		})
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Error("expected no-op logger for nil input")
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.2, 0},
		{0, 0},
		{0.55, 0.55},
		{1, 1},
		{1.3, 1},
	}
	for _, tt := range tests {
		if got := Confidence(tt.in); got != tt.want {
			t.Errorf("Confidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
