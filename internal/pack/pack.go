// Package pack consolidates rendered articles into a zip archive or a single
// merged PDF.
package pack

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Mode selects which packages are produced after a run.
type Mode string

const (
	ModeNone  Mode = "none"
	ModeZip   Mode = "zip"
	ModeMerge Mode = "merge"
	ModeBoth  Mode = "both"
)

// ParseMode validates a packaging mode name. Empty means ModeNone.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeNone, nil
	case ModeNone, ModeZip, ModeMerge, ModeBoth:
		return m, nil
	}
	return ModeNone, fmt.Errorf("unknown package mode %q (want none, zip, merge or both)", s)
}

// Zip reports whether m produces an archive.
func (m Mode) Zip() bool { return m == ModeZip || m == ModeBoth }

// Merge reports whether m produces a merged PDF.
func (m Mode) Merge() bool { return m == ModeMerge || m == ModeBoth }

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// BaseName derives the package file name (without extension) from the
// instance and the domain. The domain is appended unless it is empty or
// "global".
func BaseName(instance, domain string) string {
	host := instance
	if u, err := url.Parse(instance); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.Split(host, "/")[0]
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	name := unsafeName.ReplaceAllString(host, "_")
	if name == "" {
		name = "kb_articles"
	}
	if d := strings.TrimSpace(domain); d != "" && !strings.EqualFold(d, "global") {
		name += "_" + unsafeName.ReplaceAllString(d, "_")
	}
	return name
}

// PDFFiles returns the sorted names of the PDF files directly inside dir.
// Temporary files left by an interrupted render are skipped.
func PDFFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(name), ".pdf") {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func sortedCopy(files []string) []string {
	out := append([]string{}, files...)
	sort.Strings(out)
	return out
}
