package idx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/imagevault/pkg/apitypes"
)

func TestSummarizeSkipInlineOmitsThumbnail(t *testing.T) {
	c := &apitypes.Collection{
		ID:     apitypes.NewID(),
		Name:   "Summer",
		Images: []apitypes.ImageEmbedded{{ID: apitypes.NewID(), Filename: "a.jpg"}},
	}
	summary, state, thumb := Summarize(c, nil, false, true)
	assert.Empty(t, summary.ThumbnailDataURL)
	assert.False(t, state.HasFirstThumbnail)
	assert.Nil(t, thumb)
}

func TestSummarizeInlinesSmallGeneratedThumbnail(t *testing.T) {
	dir := t.TempDir()
	thumbPath := filepath.Join(dir, "thumb.jpg")
	require.NoError(t, os.WriteFile(thumbPath, []byte("fake-jpeg-bytes"), 0o644))

	imgID := apitypes.NewID()
	c := &apitypes.Collection{
		ID:     apitypes.NewID(),
		Images: []apitypes.ImageEmbedded{{ID: imgID, Filename: "a.jpg"}},
		Thumbnails: []apitypes.ThumbnailEmbedded{
			{ImageID: imgID, Path: thumbPath, Width: 200, Height: 200, ByteSize: 15, Format: "jpeg"},
		},
	}

	summary, state, thumb := Summarize(c, nil, false, false)
	assert.True(t, state.HasFirstThumbnail)
	assert.Contains(t, summary.ThumbnailDataURL, "data:image/jpeg;base64,")
	assert.NotEmpty(t, thumb)
}

func TestSummarizeSkipsOversizedThumbnail(t *testing.T) {
	dir := t.TempDir()
	thumbPath := filepath.Join(dir, "thumb.jpg")
	require.NoError(t, os.WriteFile(thumbPath, []byte("x"), 0o644))

	imgID := apitypes.NewID()
	c := &apitypes.Collection{
		ID:     apitypes.NewID(),
		Images: []apitypes.ImageEmbedded{{ID: imgID, Filename: "a.jpg"}},
		Thumbnails: []apitypes.ThumbnailEmbedded{
			{ImageID: imgID, Path: thumbPath, Width: 600, Height: 600, ByteSize: 1, Format: "jpeg"},
		},
	}

	summary, state, _ := Summarize(c, nil, false, false)
	assert.Empty(t, summary.ThumbnailDataURL)
	assert.False(t, state.HasFirstThumbnail)
}

func TestSummarizeMarksProcessingIncompleteWhenCallerReportsFailedStage(t *testing.T) {
	c := &apitypes.Collection{
		ID:     apitypes.NewID(),
		Images: []apitypes.ImageEmbedded{{ID: apitypes.NewID(), Filename: "a.jpg"}},
	}
	summary, _, _ := Summarize(c, nil, true, true)
	assert.True(t, summary.ProcessingIncomplete)
}

func TestSummarizeLeavesProcessingCompleteWhenNoStageFailedDespiteMissingDerivatives(t *testing.T) {
	c := &apitypes.Collection{
		ID:     apitypes.NewID(),
		Images: []apitypes.ImageEmbedded{{ID: apitypes.NewID(), Filename: "a.jpg"}},
	}
	summary, _, _ := Summarize(c, nil, false, true)
	assert.False(t, summary.ProcessingIncomplete, "a scan still in flight with no failure is not incomplete")
}
