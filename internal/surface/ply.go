package surface

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// plyHeader is the fixed layout this package writes. Load accepts only
// the same layout; these files are an internal artifact, not an
// interchange format.
const plyHeader = `ply
format binary_little_endian 1.0
element vertex %d
property float x
property float y
property float z
element face %d
property list uchar int vertex_indices
end_header
`

// SavePLY writes the mesh to path in binary little-endian PLY form.
func SavePLY(m *Mesh, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create mesh file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, plyHeader, len(m.Vertices), len(m.Faces))

	for _, v := range m.Vertices {
		for _, c := range v {
			if err := binary.Write(w, binary.LittleEndian, float32(c)); err != nil {
				return fmt.Errorf("write vertex: %w", err)
			}
		}
	}
	for _, face := range m.Faces {
		if err := w.WriteByte(3); err != nil {
			return fmt.Errorf("write face: %w", err)
		}
		for _, idx := range face {
			if err := binary.Write(w, binary.LittleEndian, int32(idx)); err != nil {
				return fmt.Errorf("write face: %w", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush mesh file: %w", err)
	}
	return f.Close()
}

// LoadPLY reads a mesh previously written by SavePLY.
func LoadPLY(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	nVertices, nFaces, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m := &Mesh{
		Vertices: make([][3]float64, nVertices),
		Faces:    make([][3]int, nFaces),
	}
	buf := make([]byte, 12)
	for i := range m.Vertices {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%s: vertex %d: %w", path, i, err)
		}
		for c := 0; c < 3; c++ {
			bits := binary.LittleEndian.Uint32(buf[c*4:])
			m.Vertices[i][c] = float64(math.Float32frombits(bits))
		}
	}
	for i := range m.Faces {
		n, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%s: face %d: %w", path, i, err)
		}
		if n != 3 {
			return nil, fmt.Errorf("%s: face %d has %d vertices", path, i, n)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%s: face %d: %w", path, i, err)
		}
		for c := 0; c < 3; c++ {
			idx := int(int32(binary.LittleEndian.Uint32(buf[c*4:])))
			if idx < 0 || idx >= nVertices {
				return nil, fmt.Errorf("%s: face %d references vertex %d", path, i, idx)
			}
			m.Faces[i][c] = idx
		}
	}
	return m, nil
}

func readHeader(r *bufio.Reader) (nVertices, nFaces int, err error) {
	magic, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return 0, 0, errors.New("not a ply file")
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return 0, 0, errors.New("truncated ply header")
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 || fields[1] != "binary_little_endian" {
				return 0, 0, fmt.Errorf("unsupported ply format %q", strings.TrimSpace(line))
			}
		case "element":
			if len(fields) != 3 {
				return 0, 0, fmt.Errorf("malformed element line %q", strings.TrimSpace(line))
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return 0, 0, fmt.Errorf("malformed element count %q", fields[2])
			}
			switch fields[1] {
			case "vertex":
				nVertices = count
			case "face":
				nFaces = count
			default:
				return 0, 0, fmt.Errorf("unsupported element %q", fields[1])
			}
		case "property", "comment":
			// Property layout is fixed by the writer.
		case "end_header":
			return nVertices, nFaces, nil
		default:
			return 0, 0, fmt.Errorf("unsupported header line %q", strings.TrimSpace(line))
		}
	}
}
