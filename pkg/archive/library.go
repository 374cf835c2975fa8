package archive

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
)

// Candidate is one filesystem entry under a library root that library-scan
// (§4.1 Stage A) must decide how to handle: a folder containing at least
// one supported image, or a supported archive file.
type Candidate struct {
	Path string
	Type apitypes.CollectionType
}

// DiscoverCollections walks root looking for candidate collections: a
// folder containing >=1 supported image extension, or a supported archive
// file. When includeSubfolders is false only root's immediate children are
// considered; when true, nested folders that aren't themselves candidates
// are descended into looking for candidates further down. Results are
// sorted case-insensitively by path for deterministic job ordering.
func DiscoverCollections(walker common.FileWalker, root string, includeSubfolders bool) ([]Candidate, error) {
	var out []Candidate
	if err := discover(walker, root, includeSubfolders, &out); err != nil {
		return nil, err
	}
	sortCandidates(out)
	return out, nil
}

func discover(walker common.FileWalker, dir string, includeSubfolders bool, out *[]Candidate) error {
	children, err := walker.ListChildren(dir)
	if err != nil {
		return err
	}

	for _, c := range children {
		if !c.IsDir {
			if IsSupportedArchive(c.Path) {
				*out = append(*out, Candidate{Path: c.Path, Type: apitypes.TypeArchive})
			}
			continue
		}

		hasImage, err := folderHasImage(walker, c.Path)
		if err != nil {
			return err
		}
		if hasImage {
			*out = append(*out, Candidate{Path: c.Path, Type: apitypes.TypeFolder})
			continue
		}
		if includeSubfolders {
			if err := discover(walker, c.Path, includeSubfolders, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func folderHasImage(walker common.FileWalker, dir string) (bool, error) {
	children, err := walker.ListChildren(dir)
	if err != nil {
		return false, err
	}
	for _, c := range children {
		if !c.IsDir && IsSupportedImage(c.Path) {
			return true, nil
		}
	}
	return false, nil
}

func sortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		return strings.ToLower(candidates[i].Path) < strings.ToLower(candidates[j].Path)
	})
}

// DerivedCollectionName derives the human-facing Collection.Name from a
// candidate path: the folder name, or the archive filename without its
// extension.
func DerivedCollectionName(path string, t apitypes.CollectionType) string {
	base := filepath.Base(path)
	if t == apitypes.TypeArchive {
		return base[:len(base)-len(filepath.Ext(base))]
	}
	return base
}
