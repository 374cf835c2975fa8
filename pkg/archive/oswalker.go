package archive

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/imagevault/imagevault/pkg/common"
)

// OSWalker is the production common.FileWalker, walking the real
// filesystem via filepath.WalkDir.
type OSWalker struct{}

func (OSWalker) Walk(root string, includeSubfolders bool) ([]common.WalkEntry, error) {
	var entries []common.WalkEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if d.IsDir() {
			if !includeSubfolders {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, common.WalkEntry{Path: path, IsDir: false, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, common.NewError(common.KindTransientIO, "archive.OSWalker.Walk", err)
	}
	return entries, nil
}

// ListChildren lists the immediate children of root (both directories and
// files), used by library-scan to enumerate candidate collections.
func (OSWalker) ListChildren(root string) ([]common.WalkEntry, error) {
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, common.NewError(common.KindTransientIO, "archive.OSWalker.ListChildren", err)
	}
	entries := make([]common.WalkEntry, 0, len(dirEntries))
	for _, d := range dirEntries {
		info, err := d.Info()
		if err != nil {
			return nil, common.NewError(common.KindTransientIO, "archive.OSWalker.ListChildren", err)
		}
		entries = append(entries, common.WalkEntry{
			Path:    filepath.Join(root, d.Name()),
			IsDir:   d.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}
