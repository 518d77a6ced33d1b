package geometry

// Cover scales a srcW×srcH image so that it fully covers a boxW×boxH area,
// centred, and returns where it lands in box coordinates. The overflowing
// axis gets a negative offset, cropping the image symmetrically.
func Cover(srcW, srcH, boxW, boxH float64) Rect {
	imgAspect := srcW / srcH
	boxAspect := boxW / boxH

	if imgAspect > boxAspect {
		w := boxH * imgAspect
		return Rect{X: (boxW - w) / 2, Y: 0, Width: w, Height: boxH}
	}
	h := boxW / imgAspect
	return Rect{X: 0, Y: (boxH - h) / 2, Width: boxW, Height: h}
}

// Contain returns the size of a srcW×srcH image fitted entirely inside a
// boxW×boxH area with its aspect ratio preserved.
func Contain(srcW, srcH, boxW, boxH float64) (w, h float64) {
	imgAspect := srcW / srcH
	if imgAspect > boxW/boxH {
		return boxW, boxW / imgAspect
	}
	return boxH * imgAspect, boxH
}
