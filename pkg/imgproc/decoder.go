// Package imgproc is the concrete implementation of common.ImageDecoder
// used by the thumbnail-gen and cache-gen stages (§4.1 Stage D/E). It keeps
// the pure decode/resize boundary the teacher's architecture favors
// (constructor-injected collaborators, no package-level globals) while
// doing real work behind it: format sniffing via h2non/filetype (already an
// indirect dependency of the teacher's own go.mod, promoted to direct
// here) and resizing via disintegration/imaging, an ecosystem addition
// named in SPEC_FULL.md's DOMAIN STACK table since no pack repo performs
// raster resizing.
package imgproc

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/webp"

	"github.com/imagevault/imagevault/pkg/common"
)

// Decoder is the default common.ImageDecoder.
type Decoder struct{}

func New() *Decoder { return &Decoder{} }

// Dimensions sniffs the format from the file's magic bytes, then decodes
// just the image header to learn its width and height without materializing
// the full pixel buffer for formats the stdlib supports natively.
func (Decoder) Dimensions(data []byte) (width, height int, format string, err error) {
	format, err = sniff(data)
	if err != nil {
		return 0, 0, "", err
	}
	cfg, _, decodeErr := image.DecodeConfig(bytes.NewReader(data))
	if decodeErr != nil {
		return 0, 0, format, common.NewError(common.KindDataCorruption, "imgproc.Decoder.Dimensions", decodeErr)
	}
	return cfg.Width, cfg.Height, format, nil
}

// Render decodes the full image, resizes it to fit within
// targetW x targetH preserving aspect ratio (Lanczos resampling, matching
// the teacher corpus's general preference for quality over speed in
// one-shot batch operations), and re-encodes it: PNG and GIF sources keep
// their format, every other source (JPEG, WebP) is encoded as JPEG at
// quality. GIF inputs are resized and re-encoded as single-frame GIFs —
// this core never generates animated thumbnails.
func (Decoder) Render(data []byte, targetW, targetH, quality int) (out []byte, format string, err error) {
	format, err = sniff(data)
	if err != nil {
		return nil, "", err
	}

	img, _, decodeErr := image.Decode(bytes.NewReader(data))
	if decodeErr != nil {
		return nil, format, common.NewError(common.KindDataCorruption, "imgproc.Decoder.Render", decodeErr)
	}

	resized := imaging.Fit(img, targetW, targetH, imaging.Lanczos)

	var buf bytes.Buffer
	switch format {
	case "png":
		if encErr := png.Encode(&buf, resized); encErr != nil {
			return nil, format, common.NewError(common.KindDataCorruption, "imgproc.Decoder.Render", encErr)
		}
	case "gif":
		if encErr := gif.Encode(&buf, resized, nil); encErr != nil {
			return nil, format, common.NewError(common.KindDataCorruption, "imgproc.Decoder.Render", encErr)
		}
	default:
		format = "jpeg"
		if encErr := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: clampQuality(quality)}); encErr != nil {
			return nil, format, common.NewError(common.KindDataCorruption, "imgproc.Decoder.Render", encErr)
		}
	}
	return buf.Bytes(), format, nil
}

// RenderJPEG decodes and resizes like Render but always encodes the result
// as JPEG, regardless of the source format (§4.3 "inlined as the resulting
// JPEG" for direct-reference thumbnails).
func (Decoder) RenderJPEG(data []byte, targetW, targetH, quality int) (out []byte, err error) {
	if _, decodeErr := sniff(data); decodeErr != nil {
		return nil, decodeErr
	}
	img, _, decodeErr := image.Decode(bytes.NewReader(data))
	if decodeErr != nil {
		return nil, common.NewError(common.KindDataCorruption, "imgproc.Decoder.RenderJPEG", decodeErr)
	}
	resized := imaging.Fit(img, targetW, targetH, imaging.Lanczos)
	var buf bytes.Buffer
	if encErr := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: clampQuality(quality)}); encErr != nil {
		return nil, common.NewError(common.KindDataCorruption, "imgproc.Decoder.RenderJPEG", encErr)
	}
	return buf.Bytes(), nil
}

func sniff(data []byte) (string, error) {
	kind, err := filetype.Match(data)
	if err != nil {
		return "", common.NewError(common.KindDataCorruption, "imgproc.sniff", err)
	}
	if kind == filetype.Unknown {
		return "", common.NewError(common.KindValidation, "imgproc.sniff", fmt.Errorf("unrecognized image format"))
	}
	switch kind.MIME.Subtype {
	case "jpeg":
		return "jpeg", nil
	case "png":
		return "png", nil
	case "gif":
		return "gif", nil
	case "webp":
		return "webp", nil
	default:
		return "", common.NewError(common.KindValidation, "imgproc.sniff", fmt.Errorf("unsupported image format %q", kind.MIME.Value))
	}
}

func clampQuality(q int) int {
	if q <= 0 {
		return 85
	}
	if q > 100 {
		return 100
	}
	return q
}
