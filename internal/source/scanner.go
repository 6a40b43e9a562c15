package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var payloadSuffixes = []string{".json", ".json.gz", ".json.zst"}

// IsPayloadName reports whether name looks like a payload file.
func IsPayloadName(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range payloadSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// ScanPaths expands the given arguments into payload files, preserving argument
// order. A directory contributes its payload files (non-recursive) sorted by name.
// "-" stands for stdin and is passed through unchanged.
func ScanPaths(args []string) ([]DiscoveredFile, error) {
	var files []DiscoveredFile
	for _, arg := range args {
		if arg == "-" {
			files = append(files, DiscoveredFile{Path: "-", Name: "stdin"})
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, newDiscovered(arg))
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() || !IsPayloadName(e.Name()) {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			files = append(files, newDiscovered(filepath.Join(arg, name)))
		}
	}
	return files, nil
}

func newDiscovered(path string) DiscoveredFile {
	lower := strings.ToLower(path)
	return DiscoveredFile{
		Path:       path,
		Name:       filepath.Base(path),
		Compressed: strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".zst"),
	}
}
