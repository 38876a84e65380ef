package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListDropDir returns the résumé files currently in dir, sorted by name.
// A missing directory yields no files.
func ListDropDir(dir string, exts []string) ([]FileRef, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read drop dir: %w", err)
	}

	var files []FileRef
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !HasAllowedExt(e.Name(), exts) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		files = append(files, FileRef{
			Path: filepath.Join(dir, e.Name()),
			Name: e.Name(),
			Size: info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// FileRefFromPath stats path and returns it as an upload candidate.
func FileRefFromPath(path string, exts []string) (FileRef, error) {
	path = expandHome(path)
	info, err := os.Stat(path)
	if err != nil {
		return FileRef{}, err
	}
	if info.IsDir() {
		return FileRef{}, fmt.Errorf("%s is a directory", path)
	}
	if !HasAllowedExt(path, exts) {
		return FileRef{}, fmt.Errorf("%s: unsupported file type (want %s)", baseName(path), strings.Join(exts, ", "))
	}
	return FileRef{Path: path, Name: baseName(path), Size: info.Size()}, nil
}

// HasAllowedExt reports whether name ends in one of exts (case-insensitive).
// An empty exts accepts everything.
func HasAllowedExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// MergeFiles appends add to files, skipping paths already present.
func MergeFiles(files []FileRef, add ...FileRef) []FileRef {
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.Path] = true
	}
	for _, f := range add {
		if seen[f.Path] {
			continue
		}
		seen[f.Path] = true
		files = append(files, f)
	}
	return files
}

// RemoveFile drops the first file whose name or path equals name.
func RemoveFile(files []FileRef, name string) ([]FileRef, bool) {
	for i, f := range files {
		if f.Name == name || f.Path == name {
			out := make([]FileRef, 0, len(files)-1)
			out = append(out, files[:i]...)
			return append(out, files[i+1:]...), true
		}
	}
	return files, false
}

func baseName(path string) string {
	return filepath.Base(path)
}
