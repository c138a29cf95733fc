package vector

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1, false},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0, false},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1, false},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0, false},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0, true},
		{"empty", nil, []float32{1}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CosineSimilarity() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineDistance_IdenticalIsZero(t *testing.T) {
	a := []float32{0.3, -0.2, 0.9}
	d, err := CosineDistance(a, a)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d) > 1e-6 {
		t.Errorf("distance to self = %v, want ~0", d)
	}
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	if norm := L2Norm(v); math.Abs(norm-1) > 1e-6 {
		t.Errorf("norm after normalize = %v, want 1", norm)
	}

	zero := []float32{0, 0}
	NormalizeL2(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Error("zero vector should be unchanged")
	}
}

func TestCosineSimilarity_ClampsDrift(t *testing.T) {
	// Unit vectors whose dot product can land a hair above 1.
	a := []float32{0.57735026, 0.57735026, 0.57735026}
	sim, err := CosineSimilarity(a, a)
	if err != nil {
		t.Fatal(err)
	}
	if sim > 1 || sim < -1 {
		t.Errorf("similarity %v outside [-1,1]", sim)
	}
}
