package pack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Keep pdfcpu from creating a config directory under the user's home.
	model.ConfigPath = "disable"
}

// Merge concatenates files (names relative to srcDir, in name order) into
// base + ".pdf" and returns its path.
func Merge(srcDir string, files []string, base string) (string, error) {
	if len(files) == 0 {
		return "", errors.New("merge: no files")
	}
	in := make([]string, 0, len(files))
	for _, name := range sortedCopy(files) {
		in = append(in, filepath.Join(srcDir, name))
	}

	out := base + ".pdf"
	tmp := filepath.Join(filepath.Dir(out), ".tmp-"+filepath.Base(out))
	_ = os.Remove(tmp)
	if err := api.MergeCreateFile(in, tmp, false, model.NewDefaultConfiguration()); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("merge: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("merge: %w", err)
	}
	return out, nil
}
