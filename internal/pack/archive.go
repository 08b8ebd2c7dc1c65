package pack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// fixedZipTime makes archives byte-for-byte reproducible (1980-01-01 UTC).
var fixedZipTime = time.Unix(315532800, 0).UTC()

// Archive writes files (names relative to srcDir) into base + ".zip" and
// returns the archive path. Entries are stored flat, in name order, with a
// fixed timestamp.
func Archive(srcDir string, files []string, base string) (string, error) {
	if len(files) == 0 {
		return "", errors.New("archive: no files")
	}
	out := base + ".zip"
	f, err := os.CreateTemp(filepath.Dir(out), ".tmp-"+filepath.Base(out)+"-")
	if err != nil {
		return "", fmt.Errorf("archive: %w", err)
	}
	tmp := f.Name()
	fail := func(err error) (string, error) {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("archive: %w", err)
	}

	zw := zip.NewWriter(f)
	for _, name := range sortedCopy(files) {
		if err := addFile(zw, filepath.Join(srcDir, name), filepath.Base(name)); err != nil {
			return fail(err)
		}
	}
	if err := zw.Close(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("archive: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("archive: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("archive: %w", err)
	}
	return out, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	h := &zip.FileHeader{Name: name, Method: zip.Deflate}
	h.SetMode(0o644)
	h.Modified = fixedZipTime
	w, err := zw.CreateHeader(h)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
