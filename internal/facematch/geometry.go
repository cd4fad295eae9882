package facematch

// ScaleBBox maps a bounding box [x1, y1, x2, y2] detected on a downscaled frame
// back to full-frame coordinates. factor is the inverse of the capture scale.
func ScaleBBox(bbox []float64, factor float64) []float64 {
	if len(bbox) != 4 || factor <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] * factor,
		bbox[1] * factor,
		bbox[2] * factor,
		bbox[3] * factor,
	}
}

// BBoxSize returns the width and height of a [x1, y1, x2, y2] box.
func BBoxSize(bbox []float64) (width, height float64) {
	if len(bbox) != 4 {
		return 0, 0
	}
	return bbox[2] - bbox[0], bbox[3] - bbox[1]
}

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	w1, h1 := BBoxSize(bbox1)
	w2, h2 := BBoxSize(bbox2)
	union := w1*h1 + w2*h2 - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}
