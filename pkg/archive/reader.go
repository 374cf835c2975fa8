package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/mholt/archiver/v3"

	"github.com/imagevault/imagevault/pkg/common"
)

// Reader opens a single archive file once and answers both "what's in it"
// and "give me this entry's bytes" (§4.1 Stage B, "open archive once").
type Reader interface {
	Entries() ([]Entry, error)
	Open(name string) (io.ReadCloser, error)
	Close() error
}

// NewReader dispatches to the concrete implementation by extension: 7z
// needs bodgit/sevenzip since mholt/archiver/v3 has no 7z support; every
// other supported extension goes through archiver/v3 — but via a
// format-specific Walker (archiver.NewZip/NewRar/NewTar), never the
// package-level archiver.Walk helper. archiver.Walk dispatches purely by
// archiver.ByExtension(filename) against its own fixed table, which does
// not contain ".cbz"/".cbr", so handing it a comic-book path verbatim
// fails with "format unrecognized by filename" even though the bytes are
// a perfectly good zip/rar. Picking the Walker ourselves from the
// extension table below (§4.1 "CBZ is treated as a ZIP container and CBR
// as a RAR container at the archive-open boundary") sidesteps that lookup
// entirely: the walker we construct already knows its own format, it just
// reads the bytes at path.
func NewReader(path string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".7z" {
		return newSevenZipReader(path)
	}
	walker, err := walkerFor(ext)
	if err != nil {
		return nil, common.NewError(common.KindDataCorruption, "archive.NewReader", err)
	}
	return newArchiverReader(path, walker), nil
}

// walkerFor maps a supported archive extension to the archiver/v3 Walker
// that actually understands its container format, remapping the two
// comic-book extensions onto their underlying container (§4.1).
func walkerFor(ext string) (archiver.Walker, error) {
	switch ext {
	case ".zip", ".cbz":
		return archiver.NewZip(), nil
	case ".rar", ".cbr":
		return archiver.NewRar(), nil
	case ".tar":
		return archiver.NewTar(), nil
	default:
		return nil, fmt.Errorf("unsupported archive extension %q", ext)
	}
}

type archiverReader struct {
	path   string
	walker archiver.Walker
}

func newArchiverReader(path string, walker archiver.Walker) *archiverReader {
	return &archiverReader{path: path, walker: walker}
}

func (r *archiverReader) Entries() ([]Entry, error) {
	var entries []Entry
	err := r.walker.Walk(r.path, func(f archiver.File) error {
		if f.IsDir() || !IsSupportedImage(f.Name()) {
			return nil
		}
		entries = append(entries, Entry{Name: filepath.ToSlash(f.Name()), Size: f.Size()})
		return nil
	})
	if err != nil {
		return nil, common.NewError(common.KindDataCorruption, "archive.archiverReader.Entries", err)
	}
	sortEntries(entries)
	return entries, nil
}

func (r *archiverReader) Open(name string) (io.ReadCloser, error) {
	var buf bytes.Buffer
	var found bool
	err := r.walker.Walk(r.path, func(f archiver.File) error {
		if f.Name() != name && filepath.ToSlash(f.Name()) != name {
			return nil
		}
		if _, copyErr := io.Copy(&buf, f); copyErr != nil {
			return fmt.Errorf("copy entry %s: %w", name, copyErr)
		}
		found = true
		return archiver.ErrStopWalk
	})
	if err != nil && !errors.Is(err, archiver.ErrStopWalk) {
		return nil, common.NewError(common.KindDataCorruption, "archive.archiverReader.Open", err)
	}
	if !found {
		return nil, common.NewError(common.KindNotFound, "archive.archiverReader.Open", fmt.Errorf("entry %q not found", name))
	}
	return io.NopCloser(&buf), nil
}

func (r *archiverReader) Close() error { return nil }

type sevenZipReader struct {
	rc *sevenzip.ReadCloser
}

func newSevenZipReader(path string) (*sevenZipReader, error) {
	rc, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, common.NewError(common.KindDataCorruption, "archive.newSevenZipReader", err)
	}
	return &sevenZipReader{rc: rc}, nil
}

func (r *sevenZipReader) Entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(r.rc.File))
	for _, f := range r.rc.File {
		if f.FileInfo().IsDir() || !IsSupportedImage(f.Name) {
			continue
		}
		entries = append(entries, Entry{Name: filepath.ToSlash(f.Name), Size: f.FileInfo().Size()})
	}
	sortEntries(entries)
	return entries, nil
}

func (r *sevenZipReader) Open(name string) (io.ReadCloser, error) {
	for _, f := range r.rc.File {
		if filepath.ToSlash(f.Name) != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, common.NewError(common.KindDataCorruption, "archive.sevenZipReader.Open", err)
		}
		return rc, nil
	}
	return nil, common.NewError(common.KindNotFound, "archive.sevenZipReader.Open", fmt.Errorf("entry %q not found", name))
}

func (r *sevenZipReader) Close() error {
	if err := r.rc.Close(); err != nil {
		return fmt.Errorf("close 7z reader: %w", err)
	}
	return nil
}
