package compositor

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
)

// ErrBackgroundMissing means the background still image could not be opened
// or decoded.
var ErrBackgroundMissing = errors.New("background image missing")

// LoadBackground decodes the still image and hard-stretches it to exactly
// width x height (aspect ratio deliberately not preserved), returning a
// normalized [0,1] RGB float buffer.
func LoadBackground(path string, width, height int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBackgroundMissing, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBackgroundMissing, path, err)
	}

	return stretchToFloat(img, width, height), nil
}

func stretchToFloat(img image.Image, width, height int) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	buf := make([]float32, width*height*3)
	for y := 0; y < height; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+width*4]
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			buf[i] = float32(row[x*4]) / 255.0
			buf[i+1] = float32(row[x*4+1]) / 255.0
			buf[i+2] = float32(row[x*4+2]) / 255.0
		}
	}
	return buf
}
