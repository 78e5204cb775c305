// Package vision implements the sub-pixel line refiner: it extracts a
// grayscale patch around a coarse line segment, computes Sobel gradients and
// recovers the two edges of the painted line with a restricted-angle Hough
// transform.
package vision

// Image8 is a dense 8-bit grayscale image.
type Image8 struct {
	Width, Height int
	Pixels        []uint8
}

// NewImage8 allocates a zeroed image.
func NewImage8(width, height int) *Image8 {
	return &Image8{Width: width, Height: height, Pixels: make([]uint8, width*height)}
}

// At returns the pixel at (x, y). The caller keeps coordinates in bounds.
func (im *Image8) At(x, y int) uint8 {
	return im.Pixels[y*im.Width+x]
}

// Set writes the pixel at (x, y).
func (im *Image8) Set(x, y int, v uint8) {
	im.Pixels[y*im.Width+x] = v
}

// ExtractPatch copies a rectangle starting at (startX, startY) into a new
// patch image. Source pixels outside the image stay zero, matching the
// behavior at frame borders.
func (im *Image8) ExtractPatch(startX, startY, width, height int) *Image8 {
	patch := NewImage8(width, height)
	for y := 0; y < height; y++ {
		srcY := startY + y
		if srcY < 0 || srcY >= im.Height {
			continue
		}
		for x := 0; x < width; x++ {
			srcX := startX + x
			if srcX < 0 || srcX >= im.Width {
				continue
			}
			patch.Set(x, y, im.At(srcX, srcY))
		}
	}
	return patch
}

// GradientImage holds per-pixel Sobel responses.
type GradientImage struct {
	Width, Height int
	X, Y          []int32
}

// MagSq returns the squared gradient magnitude at (x, y).
func (g *GradientImage) MagSq(x, y int) int32 {
	i := y*g.Width + x
	return g.X[i]*g.X[i] + g.Y[i]*g.Y[i]
}

// Sobel computes the 3x3 Sobel operator over the patch. The one-pixel border
// is left zero; consumers skip it anyway.
func Sobel(src *Image8) *GradientImage {
	g := &GradientImage{
		Width:  src.Width,
		Height: src.Height,
		X:      make([]int32, src.Width*src.Height),
		Y:      make([]int32, src.Width*src.Height),
	}
	for y := 1; y < src.Height-1; y++ {
		for x := 1; x < src.Width-1; x++ {
			tl := int32(src.At(x-1, y-1))
			tc := int32(src.At(x, y-1))
			tr := int32(src.At(x+1, y-1))
			ml := int32(src.At(x-1, y))
			mr := int32(src.At(x+1, y))
			bl := int32(src.At(x-1, y+1))
			bc := int32(src.At(x, y+1))
			br := int32(src.At(x+1, y+1))

			i := y*g.Width + x
			g.X[i] = (tr + 2*mr + br) - (tl + 2*ml + bl)
			g.Y[i] = (bl + 2*bc + br) - (tl + 2*tc + tr)
		}
	}
	return g
}
