package surface

import (
	"errors"
	"fmt"

	"ctcurator/internal/imaging"
)

// Corner numbering of one grid cell: bit 0 advances x, bit 1 advances
// y after the base-plane loop, bit 2 advances z.
var cellCorners = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// Each cell splits into six tetrahedra sharing the 0-6 diagonal, so
// adjacent cells tessellate consistently without a case table.
var cellTetrahedra = [6][4]int{
	{0, 5, 1, 6},
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
}

// Extract triangulates the iso-surface of the field at the given
// threshold. With keepLargest set the result is reduced to its largest
// connected shell.
func Extract(grid *imaging.Grid, iso float64, keepLargest bool) (*Mesh, error) {
	nx, ny, nz := grid.Dims[0], grid.Dims[1], grid.Dims[2]
	if nx < 2 || ny < 2 || nz < 2 {
		return nil, fmt.Errorf("field %dx%dx%d too small to triangulate", nx, ny, nz)
	}
	if len(grid.Data) != nx*ny*nz {
		return nil, errors.New("field data does not match its dimensions")
	}

	b := meshBuilder{grid: grid, edges: make(map[[2]int]int)}
	for z := 0; z < nz-1; z++ {
		for y := 0; y < ny-1; y++ {
			for x := 0; x < nx-1; x++ {
				b.cell(x, y, z, iso)
			}
		}
	}
	mesh := &Mesh{Vertices: b.vertices, Faces: b.faces}
	if keepLargest {
		mesh = mesh.LargestComponent()
	}
	return mesh, nil
}

type meshBuilder struct {
	grid     *imaging.Grid
	vertices [][3]float64
	faces    [][3]int
	// edges deduplicates interpolated vertices by the grid-node pair
	// they sit between, keyed with the smaller node first.
	edges map[[2]int]int
}

func (b *meshBuilder) cell(x, y, z int, iso float64) {
	var node [8]int
	var value [8]float64
	nx, ny := b.grid.Dims[0], b.grid.Dims[1]
	for c, off := range cellCorners {
		cx, cy, cz := x+off[0], y+off[1], z+off[2]
		node[c] = (cz*ny+cy)*nx + cx
		value[c] = b.grid.Data[node[c]]
	}

	for _, tet := range cellTetrahedra {
		var inside [4]bool
		count := 0
		for i, c := range tet {
			if value[c] >= iso {
				inside[i] = true
				count++
			}
		}
		switch count {
		case 0, 4:
			continue
		case 1, 3:
			// One vertex is separated from the other three; the
			// surface cuts the three edges around it.
			lone := 0
			for i := range inside {
				if inside[i] == (count == 1) {
					lone = i
				}
			}
			var tri [3]int
			k := 0
			for i := range tet {
				if i == lone {
					continue
				}
				tri[k] = b.edgeVertex(node[tet[lone]], node[tet[i]], value[tet[lone]], value[tet[i]], iso)
				k++
			}
			b.faces = append(b.faces, tri)
		case 2:
			// Two against two; the surface is a quad across the four
			// crossing edges, split into two triangles.
			var in, out [2]int
			ki, ko := 0, 0
			for i := range inside {
				if inside[i] {
					in[ki] = i
					ki++
				} else {
					out[ko] = i
					ko++
				}
			}
			v00 := b.edgeVertex(node[tet[in[0]]], node[tet[out[0]]], value[tet[in[0]]], value[tet[out[0]]], iso)
			v01 := b.edgeVertex(node[tet[in[0]]], node[tet[out[1]]], value[tet[in[0]]], value[tet[out[1]]], iso)
			v10 := b.edgeVertex(node[tet[in[1]]], node[tet[out[0]]], value[tet[in[1]]], value[tet[out[0]]], iso)
			v11 := b.edgeVertex(node[tet[in[1]]], node[tet[out[1]]], value[tet[in[1]]], value[tet[out[1]]], iso)
			b.faces = append(b.faces, [3]int{v00, v01, v11})
			b.faces = append(b.faces, [3]int{v00, v11, v10})
		}
	}
}

// edgeVertex returns the index of the surface vertex on the edge
// between two grid nodes, interpolating it on first use.
func (b *meshBuilder) edgeVertex(na, nb int, va, vb, iso float64) int {
	key := [2]int{na, nb}
	if na > nb {
		key = [2]int{nb, na}
	}
	if idx, ok := b.edges[key]; ok {
		return idx
	}

	t := 0.5
	if vb != va {
		t = (iso - va) / (vb - va)
	}
	pa := b.nodePosition(na)
	pb := b.nodePosition(nb)
	var p [3]float64
	for i := range p {
		p[i] = pa[i] + t*(pb[i]-pa[i])
	}

	idx := len(b.vertices)
	b.vertices = append(b.vertices, p)
	b.edges[key] = idx
	return idx
}

func (b *meshBuilder) nodePosition(n int) [3]float64 {
	nx, ny := b.grid.Dims[0], b.grid.Dims[1]
	x := n % nx
	y := (n / nx) % ny
	z := n / (nx * ny)
	return b.grid.Position(x, y, z)
}
