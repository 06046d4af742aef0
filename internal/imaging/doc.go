// Package imaging reconstructs scalar fields from image series. It probes
// slice headers for geometry, decodes pixel data into Hounsfield units,
// and provides the Gaussian smoothing used before surface extraction.
package imaging
