// Package imaging generates thumbnails from uploaded images.
package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/prn-tf/imagevault/internal/domain"
)

// Thumbnail is a generated thumbnail with its encoding metadata.
type Thumbnail struct {
	// Data is the encoded thumbnail bytes.
	Data []byte

	// ContentType is the MIME type of the encoded thumbnail.
	ContentType string

	// Width and Height are the thumbnail pixel dimensions.
	Width  int
	Height int
}

// Thumbnailer produces thumbnails from encoded image bytes.
type Thumbnailer interface {
	// Generate decodes data and produces a thumbnail within the
	// configured bounds. Returns domain.ErrUndecodableImage if data is
	// not a decodable image.
	Generate(data []byte) (*Thumbnail, error)
}

// Generator implements Thumbnailer with aspect-preserving downscaling.
// Images already within bounds are re-encoded at their original size;
// upscaling never happens.
type Generator struct {
	maxWidth  int
	maxHeight int
}

// NewGenerator creates a thumbnail generator with the given bounds.
func NewGenerator(maxWidth, maxHeight int) *Generator {
	return &Generator{
		maxWidth:  maxWidth,
		maxHeight: maxHeight,
	}
}

// Generate decodes data and produces a thumbnail within the bounds.
func (g *Generator) Generate(data []byte) (*Thumbnail, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUndecodableImage, err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Scale by the tighter of the two bounds; only shrink, never grow.
	scaleW := float64(g.maxWidth) / float64(width)
	scaleH := float64(g.maxHeight) / float64(height)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	out := src
	if scale < 1 {
		width = int(float64(width) * scale)
		height = int(float64(height) * scale)
		if width < 1 {
			width = 1
		}
		if height < 1 {
			height = 1
		}
		out = imaging.Resize(src, width, height, imaging.Lanczos)
	}

	encFormat, contentType := encodingFor(format)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, encFormat); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return &Thumbnail{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Width:       width,
		Height:      height,
	}, nil
}

// encodingFor maps a decoded format name to an output encoding.
// Formats without an encoder fall back to JPEG.
func encodingFor(format string) (imaging.Format, string) {
	switch format {
	case "png":
		return imaging.PNG, "image/png"
	case "gif":
		return imaging.GIF, "image/gif"
	case "bmp":
		return imaging.BMP, "image/bmp"
	case "tiff":
		return imaging.TIFF, "image/tiff"
	default:
		return imaging.JPEG, "image/jpeg"
	}
}

// Ensure Generator implements Thumbnailer.
var _ Thumbnailer = (*Generator)(nil)
