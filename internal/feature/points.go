package feature

import (
	"fmt"
	"strconv"
	"strings"
)

// ROIAttr carries the region-of-interest point count in the document and
// the reshaped point sequence once read.
const ROIAttr = "ROI_N_POINTS"

// ParsePoints reshapes a ROI body into count points of equal dimension.
// An empty body yields None. Bad coordinates are fatal.
func ParsePoints(count, body string) (Value, error) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return None(), nil
	}

	n, err := ParseInt(count)
	if err != nil || n <= 0 {
		return Value{}, fmt.Errorf("%w: %s=%q with %d coordinates", ErrValueFormat, ROIAttr, count, len(fields))
	}
	if int64(len(fields))%n != 0 {
		return Value{}, fmt.Errorf("%w: %d coordinates do not split into %d points", ErrValueFormat, len(fields), n)
	}

	coords := make([]float64, len(fields))
	for i, f := range fields {
		c, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: ROI coordinate %q", ErrValueFormat, f)
		}
		coords[i] = c
	}

	dim := len(coords) / int(n)
	pts := make([]Point, 0, n)
	for i := 0; i < len(coords); i += dim {
		pts = append(pts, Point(coords[i:i+dim:i+dim]))
	}
	return Points(pts), nil
}
