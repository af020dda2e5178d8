package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/paperflow/internal/ocr"
)

// ExpandInputs turns files and directories into a sorted, de-duplicated
// list of document paths. Directories are walked recursively and only
// supported files are kept; hidden entries and OCR sidecars are skipped.
// Files named explicitly are kept even when unsupported, so that they are
// reported instead of silently ignored.
func ExpandInputs(inputs []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		if !seen[abs] {
			seen[abs] = true
			paths = append(paths, abs)
		}
	}

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("failed to read input %s: %w", input, err)
		}
		if !info.IsDir() {
			add(input)
			continue
		}

		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if path != input && strings.HasPrefix(name, ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || strings.HasSuffix(name, ocr.SidecarSuffix) || !ocr.IsSupported(path) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", input, err)
		}
	}

	sort.Strings(paths)
	return paths, nil
}
