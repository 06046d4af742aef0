package imaging

import "math"

// Gaussian3 smooths the field in place with a separable Gaussian kernel.
// A sigma at or below zero leaves the field untouched.
func Gaussian3(grid *Grid, sigma float64) {
	if sigma <= 0 {
		return
	}
	kernel := gaussianKernel(sigma)
	convolveAxis(grid, kernel, 0)
	convolveAxis(grid, kernel, 1)
	convolveAxis(grid, kernel, 2)
}

// gaussianKernel builds a normalized kernel truncated at three sigma.
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func convolveAxis(grid *Grid, kernel []float64, axis int) {
	nx, ny, nz := grid.Dims[0], grid.Dims[1], grid.Dims[2]
	radius := len(kernel) / 2
	out := make([]float64, len(grid.Data))

	idx := func(x, y, z int) int { return (z*ny+y)*nx + x }
	limit := grid.Dims[axis]

	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				pos := [3]int{x, y, z}
				acc := 0.0
				for k, w := range kernel {
					p := pos
					// Clamp at the boundary so edge voxels keep full weight.
					q := p[axis] + k - radius
					if q < 0 {
						q = 0
					} else if q >= limit {
						q = limit - 1
					}
					p[axis] = q
					acc += w * grid.Data[idx(p[0], p[1], p[2])]
				}
				out[idx(x, y, z)] = acc
			}
		}
	}
	grid.Data = out
}
