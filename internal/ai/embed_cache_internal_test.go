package ai

import (
	"math"
	"strings"
	"testing"
)

func TestVectorEncoding(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
	}{
		{"empty", []float32{}},
		{"mixed", []float32{0, 1, -1, 0.125, math.MaxFloat32, float32(math.Inf(-1))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := encodeVector(tt.vec)
			if len(b) != 4*len(tt.vec) {
				t.Fatalf("encoded length = %d", len(b))
			}
			got, err := decodeVector(b)
			if err != nil {
				t.Fatalf("decodeVector() error = %v", err)
			}
			for i := range tt.vec {
				if got[i] != tt.vec[i] {
					t.Errorf("[%d] = %v, want %v", i, got[i], tt.vec[i])
				}
			}
		})
	}

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("decodeVector() should reject a truncated blob")
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("m1", "friction")
	if !strings.HasPrefix(a, "embed:m1:") || len(a) != len("embed:m1:")+64 {
		t.Errorf("CacheKey() = %q", a)
	}
	if a != CacheKey("m1", "friction") {
		t.Error("CacheKey() not deterministic")
	}
	if a == CacheKey("m2", "friction") || a == CacheKey("m1", "Friction") {
		t.Error("CacheKey() should differ by model and text")
	}
}
