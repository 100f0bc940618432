// Package csvsource reads GTFS feeds, either an unpacked directory or a zip
// archive, and supplies their rows to the loader.
package csvsource

import (
	"archive/zip"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/gtfsload/internal/core"
)

// Feed is a GTFS feed on disk. It implements core.Feed.
type Feed struct {
	path    string
	archive *zip.ReadCloser
	entries map[string]*zip.File
}

// Open opens the feed at p, which may be a directory or a zip archive.
// Zip archives may nest their files in a single folder.
func Open(p string) (*Feed, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return &Feed{path: p}, nil
	}

	archive, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	f := &Feed{path: p, archive: archive, entries: make(map[string]*zip.File)}
	for _, file := range archive.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name := path.Base(file.Name)
		if _, seen := f.entries[name]; !seen {
			f.entries[name] = file
		}
	}
	return f, nil
}

// OpenFeed opens the feed at p as a core.OpenFeed.
func OpenFeed(p string) (core.OpenFeed, error) {
	return Open(p)
}

// Rows opens the file of t. It returns core.ErrTableNotFound when the feed
// has no such file.
func (f *Feed) Rows(t *core.Table) (core.RowSource, error) {
	name := t.FileName()

	if f.archive != nil {
		file, ok := f.entries[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w", name, core.ErrTableNotFound)
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		src, err := NewSource(t, name, rc, int64(file.UncompressedSize64), rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return src, nil
	}

	file, err := os.Open(filepath.Join(f.path, name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", name, core.ErrTableNotFound)
	}
	if err != nil {
		return nil, err
	}
	var size int64
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}
	src, err := NewSource(t, name, file, size, file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return src, nil
}

// Files lists the .txt files of the feed.
func (f *Feed) Files() ([]string, error) {
	var names []string
	if f.archive != nil {
		for name := range f.entries {
			if strings.HasSuffix(name, ".txt") {
				names = append(names, name)
			}
		}
	} else {
		dir, err := os.ReadDir(f.path)
		if err != nil {
			return nil, err
		}
		for _, e := range dir {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
				names = append(names, e.Name())
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close releases the archive, if any.
func (f *Feed) Close() error {
	if f.archive == nil {
		return nil
	}
	return f.archive.Close()
}
