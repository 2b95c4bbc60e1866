package vision

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

const ransacConfidence = 0.995

// ransacHomography fits dst ~ H*src with RANSAC over minimal four-point
// samples, then refits on the consensus set. The returned mask marks inliers
// of the final model.
func ransacHomography(src, dst []Point, thr float64, maxIters int, rng *rand.Rand) (Homography, []bool, error) {
	n := len(src)
	if n < 4 || len(dst) != n {
		return Homography{}, nil, ErrTooFewPoints
	}
	if maxIters <= 0 {
		maxIters = 2000
	}
	thr2 := thr * thr
	var (
		best      Homography
		bestCount int
		found     bool
		sample    [4]int
		s4, d4    [4]Point
	)
	mask := make([]bool, n)
	needed := maxIters
	for iter := 0; iter < needed && iter < maxIters; iter++ {
		pickDistinct(rng, n, &sample)
		for i, idx := range sample {
			s4[i], d4[i] = src[idx], dst[idx]
		}
		if degenerate(s4[:]) || degenerate(d4[:]) {
			continue
		}
		h, ok := solveDLT(s4[:], d4[:])
		if !ok {
			continue
		}
		count := countInliers(h, src, dst, thr2, nil)
		if count > bestCount {
			best, bestCount, found = h, count, true
			needed = adaptiveIterations(float64(count)/float64(n), maxIters)
		}
	}
	if !found {
		return Homography{}, nil, ErrNoModel
	}
	countInliers(best, src, dst, thr2, mask)
	if bestCount >= 4 {
		ins, ind := make([]Point, 0, bestCount), make([]Point, 0, bestCount)
		for i, in := range mask {
			if in {
				ins = append(ins, src[i])
				ind = append(ind, dst[i])
			}
		}
		if refit, ok := solveDLT(ins, ind); ok {
			refitMask := make([]bool, n)
			if countInliers(refit, src, dst, thr2, refitMask) >= bestCount {
				return refit, refitMask, nil
			}
		}
	}
	return best, mask, nil
}

func adaptiveIterations(inlierRatio float64, maxIters int) int {
	if inlierRatio >= 1 {
		return 1
	}
	p := math.Pow(inlierRatio, 4)
	if p <= 0 {
		return maxIters
	}
	k := math.Log(1-ransacConfidence) / math.Log(1-p)
	if math.IsNaN(k) || k > float64(maxIters) {
		return maxIters
	}
	return int(math.Ceil(k))
}

func pickDistinct(rng *rand.Rand, n int, out *[4]int) {
	for i := 0; i < 4; {
		v := rng.Intn(n)
		dup := false
		for j := 0; j < i; j++ {
			if out[j] == v {
				dup = true
				break
			}
		}
		if !dup {
			out[i] = v
			i++
		}
	}
}

// degenerate reports whether any three of the points are (nearly) collinear.
func degenerate(p []Point) bool {
	for i := 0; i < len(p); i++ {
		for j := i + 1; j < len(p); j++ {
			for k := j + 1; k < len(p); k++ {
				area := (p[j].X-p[i].X)*(p[k].Y-p[i].Y) - (p[j].Y-p[i].Y)*(p[k].X-p[i].X)
				if math.Abs(area) < 1e-3 {
					return true
				}
			}
		}
	}
	return false
}

func countInliers(h Homography, src, dst []Point, thr2 float64, mask []bool) int {
	count := 0
	for i := range src {
		p := h.Project(src[i])
		dx, dy := p.X-dst[i].X, p.Y-dst[i].Y
		in := dx*dx+dy*dy <= thr2
		if in {
			count++
		}
		if mask != nil {
			mask[i] = in
		}
	}
	return count
}

// normalization returns the similarity that moves the centroid of pts to the
// origin and scales their mean distance to sqrt(2).
func normalization(pts []Point) (t [9]float64, inv [9]float64) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx, cy = cx/n, cy/n
	var dist float64
	for _, p := range pts {
		dist += math.Hypot(p.X-cx, p.Y-cy)
	}
	dist /= n
	s := 1.0
	if dist > 1e-12 {
		s = math.Sqrt2 / dist
	}
	t = [9]float64{s, 0, -s * cx, 0, s, -s * cy, 0, 0, 1}
	inv = [9]float64{1 / s, 0, cx, 0, 1 / s, cy, 0, 0, 1}
	return t, inv
}

func apply3(m [9]float64, p Point) Point {
	return Point{X: m[0]*p.X + m[1]*p.Y + m[2], Y: m[3]*p.X + m[4]*p.Y + m[5]}
}

// solveDLT computes the homography from point correspondences with the
// normalized direct linear transform. The null vector of A is taken as the
// eigenvector of AᵀA with the smallest eigenvalue.
func solveDLT(src, dst []Point) (Homography, bool) {
	n := len(src)
	if n < 4 {
		return Homography{}, false
	}
	ts, _ := normalization(src)
	td, tdInv := normalization(dst)
	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		s := apply3(ts, src[i])
		d := apply3(td, dst[i])
		a.SetRow(2*i, []float64{-s.X, -s.Y, -1, 0, 0, 0, d.X * s.X, d.X * s.Y, d.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, -s.X, -s.Y, -1, d.Y * s.X, d.Y * s.Y, d.Y})
	}
	var ata mat.Dense
	ata.Mul(a.T(), a)
	sym := mat.NewSymDense(9, nil)
	for i := 0; i < 9; i++ {
		for j := i; j < 9; j++ {
			sym.SetSym(i, j, ata.At(i, j))
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return Homography{}, false
	}
	values := eig.Values(nil)
	minIdx := 0
	for i, v := range values {
		if v < values[minIdx] {
			minIdx = i
		}
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, vecs.At(i, minIdx))
	}
	var tmp, full mat.Dense
	tmp.Mul(mat.NewDense(3, 3, tdInv[:]), hn)
	full.Mul(&tmp, mat.NewDense(3, 3, ts[:]))
	var h Homography
	for i := 0; i < 9; i++ {
		h[i] = full.At(i/3, i%3)
	}
	if math.Abs(h[8]) < 1e-12 {
		return Homography{}, false
	}
	for i := range h {
		h[i] /= h[8]
	}
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Homography{}, false
		}
	}
	return h, true
}
