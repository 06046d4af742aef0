package imaging

// Grid is a regular 3-D scalar field: Data holds Dims[0]*Dims[1]*Dims[2]
// samples with x varying fastest, then y, then z. Spacing and Origin are
// in millimeters, patient space.
type Grid struct {
	Dims    [3]int
	Spacing [3]float64
	Origin  [3]float64
	Data    []float64
}

// At returns the sample at voxel (x, y, z). Bounds are the caller's problem.
func (g *Grid) At(x, y, z int) float64 {
	return g.Data[(z*g.Dims[1]+y)*g.Dims[0]+x]
}

// Position returns the patient-space coordinate of voxel (x, y, z).
func (g *Grid) Position(x, y, z int) [3]float64 {
	return [3]float64{
		g.Origin[0] + float64(x)*g.Spacing[0],
		g.Origin[1] + float64(y)*g.Spacing[1],
		g.Origin[2] + float64(z)*g.Spacing[2],
	}
}

// Geometry describes the extent of an image grid without its samples.
type Geometry struct {
	Dims    [3]int
	Spacing [3]float64
}

// Volume returns voxel count times voxel spacing: the physical extent of
// the grid in mm³.
func (g Geometry) Volume() float64 {
	voxels := float64(g.Dims[0]) * float64(g.Dims[1]) * float64(g.Dims[2])
	return voxels * g.Spacing[0] * g.Spacing[1] * g.Spacing[2]
}
