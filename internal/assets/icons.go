// Package assets copies the fallback achievement icons next to compiled
// descriptor files.
package assets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/statsgen"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// ErrIconMissing is returned when a requested fallback icon is not in the source directory
var ErrIconMissing = errors.New("fallback icon missing")

// CopyDefaultIcons copies the fallback images flagged in result from
// srcDir into <outDir>/img/. It returns the paths written.
func CopyDefaultIcons(srcDir, outDir string, result *models.ProcessingResult) ([]string, error) {
	var names []string
	if result.CopyDefaultUnlockedImg {
		names = append(names, statsgen.DefaultUnlockedIcon)
	}
	if result.CopyDefaultLockedImg {
		names = append(names, statsgen.DefaultLockedIcon)
	}
	if len(names) == 0 {
		return nil, nil
	}

	imgDir := filepath.Join(outDir, statsgen.IconDir)
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating icon directory: %w", err)
	}

	written := make([]string, 0, len(names))
	for _, name := range names {
		dst := filepath.Join(imgDir, name)
		if err := copyFile(filepath.Join(srcDir, name), dst); err != nil {
			return written, err
		}
		written = append(written, dst)
	}
	return written, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrIconMissing, src)
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".icon-*")
	if err != nil {
		return fmt.Errorf("creating temp icon: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying %s: %w", filepath.Base(src), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp icon: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting icon permissions: %w", err)
	}
	return os.Rename(tmp.Name(), dst)
}
