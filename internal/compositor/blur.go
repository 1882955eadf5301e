package compositor

import "math"

// maskBlurKernel is the smoothing kernel size applied to the segmentation
// mask to avoid hard edges around the subject.
const maskBlurKernel = 21

// gaussianKernel builds a normalized 1-D Gaussian. Sigma is derived from the
// kernel size the same way OpenCV does when given sigma 0.
func gaussianKernel(size int) []float32 {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	center := size / 2

	k := make([]float32, size)
	var sum float64
	for i := range k {
		d := float64(i - center)
		v := math.Exp(-d * d / (2 * sigma * sigma))
		k[i] = float32(v)
		sum += v
	}
	for i := range k {
		k[i] = float32(float64(k[i]) / sum)
	}
	return k
}

// blurMask applies the 21x21 Gaussian to the alpha mask as two separable
// passes with reflected borders.
func blurMask(mask []float32, width, height int) []float32 {
	kernel := gaussianKernel(maskBlurKernel)
	tmp := make([]float32, len(mask))
	out := make([]float32, len(mask))
	radius := len(kernel) / 2

	// Horizontal pass
	for y := 0; y < height; y++ {
		row := mask[y*width : (y+1)*width]
		dst := tmp[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			var acc float32
			for k, w := range kernel {
				acc += w * row[reflect(x+k-radius, width)]
			}
			dst[x] = acc
		}
	}

	// Vertical pass
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			var acc float32
			for k, w := range kernel {
				acc += w * tmp[reflect(y+k-radius, height)*width+x]
			}
			out[y*width+x] = acc
		}
	}
	return out
}

// reflect mirrors an out-of-range index back into [0, n) without repeating
// the edge sample (border reflect 101).
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}
