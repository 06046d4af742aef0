package dicomdir

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// Discover walks root and returns a Record for every directory containing
// a descriptor file, in walk order. Walk order is deterministic (lexical)
// and doubles as the discovery order used for sort tie-breaks downstream.
func Discover(root string) ([]*Record, error) {
	var records []*Record
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != DescriptorName {
			return nil
		}
		records = append(records, New(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover acquisitions under %s: %w", root, err)
	}
	return records, nil
}
