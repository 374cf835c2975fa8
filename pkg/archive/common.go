// Package archive enumerates the media entries of a collection, whether it
// is a plain folder or one of the supported archive containers (§4.1 Stage
// B). Generalized from the teacher's pkg/archive: the old MirrorArchive's
// small "adder" interface (addFile/addAllFolder/close) and unarchive.go's
// typed header-driven dispatch over tar entries become, here, a small
// "reader" interface and an extension-driven dispatch over zip/tar/rar/7z
// entries — same shape, new domain.
package archive

import (
	"path/filepath"
	"sort"
	"strings"
)

// Entry is one discovered media file, inside a folder or an archive.
type Entry struct {
	// Name is the relative path (folder mode) or the archive entry name
	// (archive mode), always using forward slashes.
	Name string
	Size int64
}

var supportedImageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".gif": true, ".bmp": true, ".webp": true,
}

var supportedArchiveExt = map[string]bool{
	".zip": true, ".rar": true, ".7z": true,
	".cbz": true, ".cbr": true, ".tar": true,
}

// IsSupportedImage reports whether name has one of the six supported
// image extensions (§4.1 "Supported image extensions").
func IsSupportedImage(name string) bool {
	return supportedImageExt[strings.ToLower(filepath.Ext(name))]
}

// IsSupportedArchive reports whether name has one of the six supported
// archive extensions (§4.1 "Supported archive extensions").
func IsSupportedArchive(name string) bool {
	return supportedArchiveExt[strings.ToLower(filepath.Ext(name))]
}

// sortEntries sorts entries case-insensitively by name (§4.1 "sort
// deterministically"), used identically by folder and archive enumeration.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}
