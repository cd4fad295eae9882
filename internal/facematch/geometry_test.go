package facematch

import (
	"math"
	"testing"
)

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		bbox1    []float64
		bbox2    []float64
		expected float64
	}{
		{
			name:     "identical boxes",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{0, 0, 10, 10},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{20, 20, 30, 30},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{5, 5, 15, 15},
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "one inside other",
			bbox1:    []float64{0, 0, 20, 20},
			bbox2:    []float64{5, 5, 15, 15},
			expected: 100.0 / 400.0, // intersection=100, union=400 (larger box)
		},
		{
			name:     "invalid bbox1",
			bbox1:    []float64{0, 0, 10},
			bbox2:    []float64{0, 0, 10, 10},
			expected: 0.0,
		},
		{
			name:     "empty bboxes",
			bbox1:    []float64{},
			bbox2:    []float64{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.bbox1, tt.bbox2)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.bbox1, tt.bbox2, result, tt.expected)
			}
		})
	}
}

func TestScaleBBox(t *testing.T) {
	got := ScaleBBox([]float64{10, 20, 30, 40}, 4)
	want := []float64{40, 80, 120, 160}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ScaleBBox() = %v, want %v", got, want)
		}
	}

	invalid := []float64{1, 2, 3}
	if got := ScaleBBox(invalid, 4); len(got) != 3 {
		t.Errorf("expected invalid bbox to be returned unchanged, got %v", got)
	}
}

func TestBBoxSize(t *testing.T) {
	w, h := BBoxSize([]float64{10, 20, 130, 220})
	if w != 120 || h != 200 {
		t.Errorf("BBoxSize() = (%v, %v), want (120, 200)", w, h)
	}
	if w, h := BBoxSize(nil); w != 0 || h != 0 {
		t.Errorf("BBoxSize(nil) = (%v, %v), want (0, 0)", w, h)
	}
}
