package archive

import (
	"path/filepath"

	"github.com/imagevault/imagevault/pkg/common"
)

// EnumerateFolder lists every supported image under root (recursing when
// includeSubfolders is set) and returns them sorted case-insensitively by
// relative path (§4.1 Stage B, "type=Folder").
func EnumerateFolder(walker common.FileWalker, root string, includeSubfolders bool) ([]Entry, error) {
	raw, err := walker.Walk(root, includeSubfolders)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))
	for _, e := range raw {
		if e.IsDir || !IsSupportedImage(e.Path) {
			continue
		}
		rel, err := filepath.Rel(root, e.Path)
		if err != nil {
			rel = e.Path
		}
		entries = append(entries, Entry{Name: filepath.ToSlash(rel), Size: e.Size})
	}
	sortEntries(entries)
	return entries, nil
}
