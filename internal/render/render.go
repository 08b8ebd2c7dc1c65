// Package render turns one knowledge article into one PDF file.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"kbexport/internal/snow"
)

// Ext is the extension of rendered files.
const Ext = ".pdf"

// Renderer produces one file for one article in destDir and returns its path.
type Renderer interface {
	Render(ctx context.Context, number, destDir string) (string, error)
}

// ArticleSource looks up an article body by number. *snow.KnowledgeScope
// satisfies it.
type ArticleSource interface {
	Get(ctx context.Context, number string) (*snow.Article, error)
}

var numberPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileName returns the output file name for an article number.
func FileName(number string) string { return number + Ext }

// Path returns the output path for an article number inside dir. Numbers that
// could escape dir are rejected.
func Path(dir, number string) (string, error) {
	if !numberPattern.MatchString(number) || number == "." || number == ".." {
		return "", fmt.Errorf("invalid article number %q", number)
	}
	return filepath.Join(dir, FileName(number)), nil
}

// writeAtomic writes data next to path and renames it into place, so a failed
// render never leaves a truncated file behind.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
