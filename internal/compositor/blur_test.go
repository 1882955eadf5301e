package compositor

import (
	"math"
	"testing"
)

func TestGaussianKernelNormalized(t *testing.T) {
	k := gaussianKernel(maskBlurKernel)
	if len(k) != maskBlurKernel {
		t.Fatalf("kernel size = %d, want %d", len(k), maskBlurKernel)
	}

	var sum float64
	for _, v := range k {
		sum += float64(v)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Errorf("kernel sum = %f, want 1", sum)
	}

	// Symmetric around the center, peaked at it
	c := len(k) / 2
	for i := 0; i < c; i++ {
		if math.Abs(float64(k[i]-k[len(k)-1-i])) > 1e-6 {
			t.Errorf("kernel asymmetric at %d: %f vs %f", i, k[i], k[len(k)-1-i])
		}
	}
	for i, v := range k {
		if i != c && v >= k[c] {
			t.Errorf("kernel not peaked at center: k[%d]=%f >= k[%d]=%f", i, v, c, k[c])
		}
	}
}

func TestBlurConstantMaskIsIdentity(t *testing.T) {
	const w, h = 40, 30
	mask := make([]float32, w*h)
	for i := range mask {
		mask[i] = 0.75
	}

	out := blurMask(mask, w, h)
	for i, v := range out {
		if math.Abs(float64(v-0.75)) > 1e-4 {
			t.Fatalf("blurred constant mask changed at %d: %f", i, v)
		}
	}
}

func TestBlurSoftensStep(t *testing.T) {
	const w, h = 64, 4
	mask := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			mask[y*w+x] = 1
		}
	}

	out := blurMask(mask, w, h)

	// The edge column must land strictly between the two plateaus.
	edge := out[w/2]
	if edge <= 0.05 || edge >= 0.95 {
		t.Errorf("edge value = %f, want softened", edge)
	}
	// Values stay inside [0,1] up to float rounding.
	for i, v := range out {
		if v < -1e-5 || v > 1+1e-5 {
			t.Fatalf("out of range at %d: %f", i, v)
		}
	}
	// Far from the edge the plateaus survive.
	if out[0] > 0.01 {
		t.Errorf("left plateau disturbed: %f", out[0])
	}
	if out[w-1] < 0.99 {
		t.Errorf("right plateau disturbed: %f", out[w-1])
	}
}

func TestReflectIndex(t *testing.T) {
	cases := []struct{ i, n, want int }{
		{0, 10, 0},
		{9, 10, 9},
		{-1, 10, 1},
		{-2, 10, 2},
		{10, 10, 8},
		{11, 10, 7},
		{5, 1, 0},
	}
	for _, c := range cases {
		if got := reflect(c.i, c.n); got != c.want {
			t.Errorf("reflect(%d, %d) = %d, want %d", c.i, c.n, got, c.want)
		}
	}
}
