package pipeline

import (
	"io"
	"os"
	"path/filepath"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
)

// buildSource derives the wire-level MessageSource for one image embedded
// in a folder or archive collection, so later stages don't need to
// re-derive a path from (collectionPath, collectionType, relativePath)
// themselves.
func buildSource(collectionType apitypes.CollectionType, collectionPath, relativePath string) apitypes.MessageSource {
	if collectionType == apitypes.TypeArchive {
		return apitypes.MessageSource{ArchivePath: collectionPath, EntryName: relativePath}
	}
	return apitypes.MessageSource{FilePath: filepath.Join(collectionPath, filepath.FromSlash(relativePath))}
}

// readSource fetches an image's raw bytes from wherever its MessageSource
// points, opening the archive fresh each time so a stage consumer stays
// stateless across messages (§4.1 "each message is processed
// independently").
func readSource(src apitypes.MessageSource) ([]byte, error) {
	if src.IsArchive() {
		return readArchiveEntry(src.ArchivePath, src.EntryName)
	}
	data, err := os.ReadFile(src.FilePath)
	if err != nil {
		return nil, common.NewError(common.KindDataCorruption, "pipeline.readSource", err)
	}
	return data, nil
}

func readArchiveEntry(archivePath, entryName string) ([]byte, error) {
	r, err := openReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	rc, err := r.Open(entryName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, common.NewError(common.KindDataCorruption, "pipeline.readArchiveEntry", err)
	}
	return data, nil
}
