package imaging

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrImageDecode marks series that cannot be reconstructed into a scalar
// field. A corrupt series is a data problem, not a transient one: it is
// propagated, never retried.
var ErrImageDecode = errors.New("image decode failed")

// sliceInfo is the per-instance geometry needed to order and place slices.
type sliceInfo struct {
	path     string
	rows     int
	cols     int
	spacing  [2]float64 // row spacing, column spacing
	position [3]float64 // ImagePositionPatient
	normal   [3]float64 // row direction × column direction
	// offset is the projection of position onto the normal, the sort key
	// along the stack.
	offset float64
}

// ProbeGeometry reads the series headers only (pixel data skipped) and
// returns the grid dimensions and spacing. Slice spacing is the median gap
// between adjacent slice offsets along the stack normal.
func ProbeGeometry(files []string) (Geometry, error) {
	infos, err := probeSlices(files)
	if err != nil {
		return Geometry{}, err
	}
	first := infos[0]
	return Geometry{
		Dims:    [3]int{first.cols, first.rows, len(infos)},
		Spacing: [3]float64{first.spacing[1], first.spacing[0], sliceGap(infos)},
	}, nil
}

// DecodeSeries reconstructs the full scalar field from the series,
// applying the rescale slope/intercept so samples are in Hounsfield units.
func DecodeSeries(files []string) (*Grid, error) {
	infos, err := probeSlices(files)
	if err != nil {
		return nil, err
	}
	first := infos[0]
	nx, ny, nz := first.cols, first.rows, len(infos)

	grid := &Grid{
		Dims:    [3]int{nx, ny, nz},
		Spacing: [3]float64{first.spacing[1], first.spacing[0], sliceGap(infos)},
		Origin:  first.position,
		Data:    make([]float64, nx*ny*nz),
	}

	for z, info := range infos {
		ds, err := dicom.ParseFile(info.path, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrImageDecode, info.path, err)
		}
		if err := decodeSliceInto(&ds, grid, z); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrImageDecode, info.path, err)
		}
	}
	return grid, nil
}

func decodeSliceInto(ds *dicom.Dataset, grid *Grid, z int) error {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil || el == nil {
		return errors.New("no pixel data")
	}
	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) == 0 {
		return errors.New("pixel data holds no frames")
	}
	native, err := info.Frames[0].GetNativeFrame()
	if err != nil {
		return fmt.Errorf("native frame: %w", err)
	}

	slope, intercept := rescale(ds)
	nx, ny := grid.Dims[0], grid.Dims[1]
	if native.Rows != ny || native.Cols != nx {
		return fmt.Errorf("slice is %dx%d, series is %dx%d", native.Cols, native.Rows, nx, ny)
	}
	base := z * nx * ny
	for i, sample := range native.Data {
		grid.Data[base+i] = float64(sample[0])*slope + intercept
	}
	return nil
}

func rescale(ds *dicom.Dataset) (slope, intercept float64) {
	slope = 1
	if v := firstFloat(ds, tag.RescaleSlope); v != 0 {
		slope = v
	}
	intercept = firstFloat(ds, tag.RescaleIntercept)
	return slope, intercept
}

func probeSlices(files []string) ([]sliceInfo, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrImageDecode)
	}
	infos := make([]sliceInfo, 0, len(files))
	for _, path := range files {
		ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrImageDecode, path, err)
		}
		info, err := probeSlice(&ds)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrImageDecode, path, err)
		}
		info.path = path
		infos = append(infos, info)
	}
	orderSlices(infos)
	return infos, nil
}

func probeSlice(ds *dicom.Dataset) (sliceInfo, error) {
	var info sliceInfo

	rows := firstInt(ds, tag.Rows)
	cols := firstInt(ds, tag.Columns)
	if rows <= 0 || cols <= 0 {
		return info, errors.New("missing rows/columns")
	}
	info.rows, info.cols = rows, cols

	spacing, ok := floatValues(ds, tag.PixelSpacing, 2)
	if !ok {
		return info, errors.New("missing pixel spacing")
	}
	info.spacing = [2]float64{spacing[0], spacing[1]}

	if pos, ok := floatValues(ds, tag.ImagePositionPatient, 3); ok {
		info.position = [3]float64{pos[0], pos[1], pos[2]}
	}
	if iop, ok := floatValues(ds, tag.ImageOrientationPatient, 6); ok {
		// Normal = row direction × column direction.
		info.normal = [3]float64{
			iop[1]*iop[5] - iop[2]*iop[4],
			iop[2]*iop[3] - iop[0]*iop[5],
			iop[0]*iop[4] - iop[1]*iop[3],
		}
	} else {
		info.normal = [3]float64{0, 0, 1}
	}
	info.offset = info.position[0]*info.normal[0] +
		info.position[1]*info.normal[1] +
		info.position[2]*info.normal[2]
	return info, nil
}

// orderSlices sorts by offset along the stack normal; instance file order
// is the fallback when positions are absent (all offsets zero).
func orderSlices(infos []sliceInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].offset < infos[j].offset
	})
}

// sliceGap returns the median adjacent-slice distance, or the row spacing
// when the stack has a single slice or no usable positions.
func sliceGap(infos []sliceInfo) float64 {
	if len(infos) < 2 {
		return infos[0].spacing[0]
	}
	gaps := make([]float64, 0, len(infos)-1)
	for i := 1; i < len(infos); i++ {
		if gap := math.Abs(infos[i].offset - infos[i-1].offset); gap > 0 {
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) == 0 {
		return infos[0].spacing[0]
	}
	sort.Float64s(gaps)
	return gaps[len(gaps)/2]
}

func firstInt(ds *dicom.Dataset, t tag.Tag) int {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil || el.Value.ValueType() != dicom.Ints {
		return 0
	}
	ints := el.Value.GetValue().([]int)
	if len(ints) == 0 {
		return 0
	}
	return ints[0]
}

func firstFloat(ds *dicom.Dataset, t tag.Tag) float64 {
	values, ok := floatValues(ds, t, 1)
	if !ok {
		return 0
	}
	return values[0]
}

// floatValues reads a numeric multi-valued tag. DS-encoded tags arrive as
// strings and are parsed; FL/FD tags arrive as floats.
func floatValues(ds *dicom.Dataset, t tag.Tag, expected int) ([]float64, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return nil, false
	}
	switch el.Value.ValueType() {
	case dicom.Floats:
		floats := el.Value.GetValue().([]float64)
		if len(floats) < expected {
			return nil, false
		}
		return floats[:expected], true
	case dicom.Strings:
		strs := el.Value.GetValue().([]string)
		if len(strs) < expected {
			return nil, false
		}
		values := make([]float64, 0, expected)
		for _, s := range strs[:expected] {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, false
			}
			values = append(values, f)
		}
		return values, true
	}
	return nil, false
}
