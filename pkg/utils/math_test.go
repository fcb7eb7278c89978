package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want []float32
	}{
		{"3-4-5", []float32{3, 4}, []float32{0.6, 0.8}},
		{"already unit", []float32{1, 0, 0}, []float32{1, 0, 0}},
		{"zero vector unchanged", []float32{0, 0}, []float32{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := append([]float32(nil), tt.in...)
			NormalizeL2(v)
			for i := range v {
				if math.Abs(float64(v[i]-tt.want[i])) > 1e-6 {
					t.Fatalf("NormalizeL2(%v) = %v, want %v", tt.in, v, tt.want)
				}
			}
		})
	}
}

func TestNormalizeBatchL2(t *testing.T) {
	batch := [][]float32{{2, 0}, {0, 5}}
	NormalizeBatchL2(batch)
	if batch[0][0] != 1 || batch[1][1] != 1 {
		t.Errorf("batch not normalized: %v", batch)
	}
}
