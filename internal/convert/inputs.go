package convert

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/asc2maf/internal/fsutil"
)

// HasExt reports whether path ends in ext, ignoring case.
func HasExt(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}

// CollectInputs expands the command line paths into the recordings to
// convert. A directory contributes its entries with the input extension,
// sorted by name and without recursing. An explicit file is kept only when it
// has the input extension.
func CollectInputs(fsys fsutil.FileSystem, paths []string, ext string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := fsys.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			if HasExt(p, ext) {
				out = append(out, p)
			}
			continue
		}

		entries, err := fsys.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", p, err)
		}
		for _, e := range entries {
			if e.IsDir() || !HasExt(e.Name(), ext) {
				continue
			}
			out = append(out, filepath.Join(p, e.Name()))
		}
	}
	return out, nil
}

// OutputPath replaces the extension of input with ext.
func OutputPath(input, ext string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

// ParticipantLabel returns the characters [start, end) of the base name of
// input, clipped to the name length.
func ParticipantLabel(input string, start, end int) string {
	name := []rune(filepath.Base(input))
	start = min(max(start, 0), len(name))
	end = min(max(end, start), len(name))
	return string(name[start:end])
}
