package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prn-tf/imagevault/internal/domain"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestGenerator_Generate(t *testing.T) {
	gen := NewGenerator(200, 150)

	tests := []struct {
		name        string
		data        []byte
		wantW       int
		wantH       int
		contentType string
	}{
		{
			name:        "wide image bound by width",
			data:        encodePNG(t, 800, 400),
			wantW:       200,
			wantH:       100,
			contentType: "image/png",
		},
		{
			name:        "tall image bound by height",
			data:        encodePNG(t, 400, 600),
			wantW:       100,
			wantH:       150,
			contentType: "image/png",
		},
		{
			name:        "small image not upscaled",
			data:        encodePNG(t, 64, 48),
			wantW:       64,
			wantH:       48,
			contentType: "image/png",
		},
		{
			name:        "jpeg stays jpeg",
			data:        encodeJPEG(t, 400, 400),
			wantW:       150,
			wantH:       150,
			contentType: "image/jpeg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thumb, err := gen.Generate(tt.data)
			require.NoError(t, err)

			require.Equal(t, tt.wantW, thumb.Width)
			require.Equal(t, tt.wantH, thumb.Height)
			require.Equal(t, tt.contentType, thumb.ContentType)
			require.NotEmpty(t, thumb.Data)

			// The encoded bytes must agree with the reported dimensions.
			decoded, _, err := image.Decode(bytes.NewReader(thumb.Data))
			require.NoError(t, err)
			require.Equal(t, tt.wantW, decoded.Bounds().Dx())
			require.Equal(t, tt.wantH, decoded.Bounds().Dy())
		})
	}
}

func TestGenerator_Generate_Undecodable(t *testing.T) {
	gen := NewGenerator(200, 150)

	for _, data := range [][]byte{
		nil,
		[]byte("not an image at all"),
		{0xFF, 0xD8, 0xFF},
	} {
		_, err := gen.Generate(data)
		require.ErrorIs(t, err, domain.ErrUndecodableImage)
	}
}

func TestGenerator_Generate_PreservesAspectRatio(t *testing.T) {
	gen := NewGenerator(100, 100)

	thumb, err := gen.Generate(encodePNG(t, 1000, 500))
	require.NoError(t, err)

	require.Equal(t, 100, thumb.Width)
	require.Equal(t, 50, thumb.Height)
}
