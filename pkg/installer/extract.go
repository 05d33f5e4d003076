package installer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errs "github.com/matzehuels/modmarket/pkg/errors"
)

// maxExtractSize caps the bytes one archive may unpack to.
var maxExtractSize int64 = 1 << 30

// extract unpacks the ZIP archive at src into root, keeping the archive's
// directory layout. Entries that would land outside root and symlinks are
// rejected. It returns the number of files written.
func extract(src, root string) (int, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	root, err = filepath.Abs(root)
	if err != nil {
		return 0, err
	}

	files := 0
	budget := maxExtractSize
	for _, f := range zr.File {
		name := strings.TrimPrefix(f.Name, "./")
		if name == "" {
			continue
		}
		if err := errs.ValidatePath(name); err != nil {
			return files, fmt.Errorf("entry %q: %w", f.Name, err)
		}
		target := filepath.Join(root, filepath.FromSlash(name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return files, fmt.Errorf("entry %q escapes the modules directory", f.Name)
		}

		mode := f.Mode()
		switch {
		case mode&os.ModeSymlink != 0:
			return files, fmt.Errorf("entry %q is a symlink", f.Name)
		case f.FileInfo().IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return files, err
		}
		if err := writeEntry(f, target, &budget); err != nil {
			return files, fmt.Errorf("entry %q: %w", f.Name, err)
		}
		files++
	}
	return files, nil
}

// writeEntry copies f to target. It reads at most the entry's declared
// size and charges what it wrote against budget.
func writeEntry(f *zip.File, target string, budget *int64) error {
	if f.UncompressedSize64 > uint64(*budget) {
		return fmt.Errorf("archive exceeds the %d byte extraction limit", maxExtractSize)
	}
	declared := int64(f.UncompressedSize64)

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm|0o600)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(rc, declared+1))
	if err == nil && n > declared {
		err = fmt.Errorf("entry holds more than its declared %d bytes", declared)
	}
	if err != nil {
		out.Close()
		os.Remove(target)
		return err
	}
	*budget -= n
	return out.Close()
}
