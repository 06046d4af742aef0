package export

import (
	"context"
	"fmt"
	"os"

	"ctcurator/internal/fileutil"
)

// CopyAcquisition is the plain export Func: it materializes the
// destination with parent creation and merges the source tree into it.
// Pre-existing output is not an error, so an interrupted batch can be
// re-run and converges on the same tree.
func CopyAcquisition(ctx context.Context, unit Unit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(unit.Dest, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if err := fileutil.CopyTree(unit.Source, unit.Dest); err != nil {
		return fmt.Errorf("copy acquisition: %w", err)
	}
	return nil
}
