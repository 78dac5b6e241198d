package reconcile

// EntropyDomainMax bounds the plotted entropy domain. Scores outside
// 0–8 map off-chart, which is accepted rather than clamped.
const EntropyDomainMax = 8.0

// Point is one plot coordinate.
type Point struct {
	X float64
	Y float64
}

// MapSeries maps a series onto plot coordinates. Series of length zero
// or one render as a flat baseline across the bottom of the plot; for
// longer series the i-th point sits at x = i/(n-1) of the width, with
// entropy 0 at the bottom edge and 8 at the top.
func MapSeries(s Series, width, height float64) []Point {
	if len(s) <= 1 {
		return []Point{{X: 0, Y: height}, {X: width, Y: height}}
	}

	pts := make([]Point, len(s))
	for i, d := range s {
		pts[i] = Point{
			X: float64(i) / float64(len(s)-1) * width,
			Y: height - d.Entropy/EntropyDomainMax*height,
		}
	}
	return pts
}
