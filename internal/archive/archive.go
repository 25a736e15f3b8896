// Package archive opens tweet archives and streams their records.
//
// An archive is a zip file whose members hold newline-delimited JSON, one
// record per line. Any other file is treated as a single such member.
// Members are listed in reverse lexicographic order so the newest-dated
// member of a conventionally named archive is read first.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Member is one newline-delimited stream inside an archive.
type Member struct {
	Name string
	open func() (io.ReadCloser, error)
}

// Open returns the member's raw byte stream. Callers close it.
func (m Member) Open() (io.ReadCloser, error) { return m.open() }

// Archive is an opened input path.
type Archive struct {
	Path    string
	zr      *zip.ReadCloser
	members []Member
}

// Open opens path as a zip archive, falling back to a single plain member
// when the file is not a zip.
func Open(ctx context.Context, path string) (*Archive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(path)
	switch {
	case err == nil:
		return fromZip(path, zr), nil
	case errors.Is(err, zip.ErrFormat):
		return plain(path)
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
}

func fromZip(path string, zr *zip.ReadCloser) *Archive {
	a := &Archive{Path: path, zr: zr}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		a.members = append(a.members, Member{Name: f.Name, open: f.Open})
	}
	slices.SortFunc(a.members, func(x, y Member) int { return strings.Compare(y.Name, x.Name) })
	return a
}

func plain(path string) (*Archive, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("open %s: is a directory", path)
	}
	return &Archive{
		Path: path,
		members: []Member{{
			Name: filepath.Base(path),
			open: func() (io.ReadCloser, error) { return os.Open(path) },
		}},
	}, nil
}

// Members lists the archive's members, reverse lexicographically by name.
func (a *Archive) Members() []Member { return a.members }

// Close releases the zip reader, if any.
func (a *Archive) Close() error {
	if a.zr == nil {
		return nil
	}
	return a.zr.Close()
}

// SortPaths returns a reverse-lexicographic copy of paths, the order in which
// input files are loaded.
func SortPaths(paths []string) []string {
	out := slices.Clone(paths)
	slices.SortFunc(out, func(x, y string) int { return strings.Compare(y, x) })
	return out
}
