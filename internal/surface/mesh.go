// Package surface extracts and manipulates triangulated iso-surfaces
// of reconstructed scalar fields.
package surface

import "math/rand"

// Artifact names written into each exported acquisition directory.
const (
	SkinFile  = "skin.ply"
	SkullFile = "skull.ply"
)

// Mesh is an indexed triangle surface in patient coordinates.
type Mesh struct {
	Vertices [][3]float64
	Faces    [][3]int
}

// SampleVertices draws n vertices uniformly at random. When the mesh
// holds fewer than n vertices the sample is drawn with replacement so
// the result always has exactly n points.
func (m *Mesh) SampleVertices(n int, rng *rand.Rand) [][3]float64 {
	if n <= 0 || len(m.Vertices) == 0 {
		return nil
	}
	out := make([][3]float64, 0, n)
	if len(m.Vertices) <= n {
		perm := rng.Perm(len(m.Vertices))
		for _, i := range perm {
			out = append(out, m.Vertices[i])
		}
		for len(out) < n {
			out = append(out, m.Vertices[rng.Intn(len(m.Vertices))])
		}
		return out
	}
	for _, i := range rng.Perm(len(m.Vertices))[:n] {
		out = append(out, m.Vertices[i])
	}
	return out
}

// LargestComponent reduces the mesh to its largest edge-connected
// component. Iso-surfaces of noisy scans shed small floating shells;
// only the main anatomical shell is wanted.
func (m *Mesh) LargestComponent() *Mesh {
	if len(m.Faces) == 0 {
		return &Mesh{}
	}
	parent := make([]int, len(m.Vertices))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, f := range m.Faces {
		union(f[0], f[1])
		union(f[1], f[2])
	}

	sizes := make(map[int]int)
	for i := range m.Vertices {
		sizes[find(i)]++
	}
	best, bestSize := -1, 0
	for root, size := range sizes {
		if size > bestSize {
			best, bestSize = root, size
		}
	}

	remap := make(map[int]int)
	out := &Mesh{}
	for _, f := range m.Faces {
		if find(f[0]) != best {
			continue
		}
		var nf [3]int
		for k, v := range f {
			nv, ok := remap[v]
			if !ok {
				nv = len(out.Vertices)
				remap[v] = nv
				out.Vertices = append(out.Vertices, m.Vertices[v])
			}
			nf[k] = nv
		}
		out.Faces = append(out.Faces, nf)
	}
	return out
}
