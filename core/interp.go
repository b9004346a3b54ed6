package core

// lagrange evaluates the Lagrange interpolating polynomial through the
// points (ts[i], ys[i]) at t and returns the value together with its first
// and second derivatives, all from one pass over the basis polynomials.
//
// The derivative terms use the expanded product forms rather than the
// logarithmic-derivative shortcut, so a target sitting exactly on one of the
// abscissae is handled without any division by (t - ts[j]). Cost is
// O(n^4) in the window size, which stays small (order <= ~20).
func lagrange(ts, ys []float64, t float64) (y, dy, d2y float64) {
	n := len(ts)
	for i := 0; i < n; i++ {
		den := 1.0
		prod := 1.0
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			den *= ts[i] - ts[j]
			prod *= t - ts[j]
		}

		var s1, s2 float64
		for k := 0; k < n; k++ {
			if k == i {
				continue
			}
			pk := 1.0
			for j := 0; j < n; j++ {
				if j == i || j == k {
					continue
				}
				pk *= t - ts[j]
			}
			s1 += pk

			for l := 0; l < n; l++ {
				if l == i || l == k {
					continue
				}
				pl := 1.0
				for j := 0; j < n; j++ {
					if j == i || j == k || j == l {
						continue
					}
					pl *= t - ts[j]
				}
				s2 += pl
			}
		}

		w := ys[i] / den
		y += w * prod
		dy += w * s1
		d2y += w * s2
	}
	return y, dy, d2y
}

// linearInterp interpolates between two samples and returns the value at t
// plus the slope. The two abscissae must differ.
func linearInterp(t0, y0, t1, y1, t float64) (y, dy float64) {
	dy = (y1 - y0) / (t1 - t0)
	y = y0 + dy*(t-t0)
	return y, dy
}

// evenOrder rounds an interpolation order up to the nearest even value and
// clamps it to at least 2.
func evenOrder(order int) int {
	if order < 2 {
		return 2
	}
	if order%2 != 0 {
		return order + 1
	}
	return order
}
