package facematch

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"hello", "hello"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizePersonID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"alice", "alice"},
		{"  Alice   Smith ", "Alice Smith"},
		{"Jiri\tNovak", "Jiri Novak"},
		{"Jir\u030ci\u0301", "Jiří"}, // decomposed input is composed to NFC
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizePersonID(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePersonID(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFoldPersonID(t *testing.T) {
	if FoldPersonID("Jiří  Novák") != FoldPersonID("jiri novak") {
		t.Errorf("expected folded ids to collide: %q vs %q", FoldPersonID("Jiří  Novák"), FoldPersonID("jiri novak"))
	}
	if FoldPersonID("alice") == FoldPersonID("bob") {
		t.Error("distinct names must not fold to the same key")
	}
}
