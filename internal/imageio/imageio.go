// Package imageio loads images as single-channel float32 pixel arrays for
// kernels and stores kernel output back as images.
package imageio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/effect"
	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format is an image encoding.
type Format int

const (
	None Format = iota
	BMP
	PNG
	JPEG
	GIF
	TIFF
)

func (f Format) String() string {
	switch f {
	case BMP:
		return "bmp"
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	case GIF:
		return "gif"
	case TIFF:
		return "tiff"
	}
	return "none"
}

// ExtToFormat returns the format named by a file extension, with or
// without the leading dot.
func ExtToFormat(ext string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "bmp":
		return BMP, nil
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "gif":
		return GIF, nil
	case "tif", "tiff":
		return TIFF, nil
	case "":
		return None, errors.New("no file extension")
	}
	return None, fmt.Errorf("extension %q not recognized", ext)
}

// ErrNotImage is returned for input that is not a supported image.
var ErrNotImage = errors.New("not a supported image")

// Image is a grayscale image as row-major float32 intensities in 0..255.
type Image struct {
	Width, Height int
	Pixels        []float32

	// Format is the encoding the image was read from.
	Format Format
}

// New returns a black image of the given size.
func New(w, h int, f Format) *Image {
	return &Image{Width: w, Height: h, Pixels: make([]float32, w*h), Format: f}
}

// Read loads and converts the image at path.
func Read(path string) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode sniffs the header, decodes, and converts to grayscale.
func Decode(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(261)
	if !filetype.IsImage(head) {
		return nil, ErrNotImage
	}
	kind, _ := filetype.Match(head)
	f, err := ExtToFormat(kind.Extension)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, kind.MIME.Value)
	}

	var src image.Image
	switch f {
	case BMP:
		src, err = bmp.Decode(br)
	case TIFF:
		src, err = tiff.Decode(br)
	default:
		src, _, err = image.Decode(br)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}

	return fromLuma(effect.Grayscale(src), f), nil
}

// fromLuma reads the intensities of an image whose channels all carry the
// same luminance, as produced by effect.Grayscale.
func fromLuma(img *image.RGBA, f Format) *Image {
	b := img.Bounds()
	out := New(b.Dx(), b.Dy(), f)
	for y := 0; y < out.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < out.Width; x++ {
			out.Pixels[y*out.Width+x] = float32(row[4*x])
		}
	}
	return out
}

// Gray converts the pixels back to an 8-bit image, clamping to 0..255 and
// rounding to the nearest level.
func (m *Image) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pixels {
		switch {
		case v <= 0:
			g.Pix[i] = 0
		case v >= 255:
			g.Pix[i] = 255
		default:
			g.Pix[i] = uint8(v + 0.5)
		}
	}
	return g
}

// Write stores m at path in the format named by its extension, or in m's
// own format when the extension is not recognized.
func Write(path string, m *Image) error {
	f, err := ExtToFormat(filepath.Ext(path))
	if err != nil {
		if m.Format == None {
			return err
		}
		f = m.Format
	}
	var buf bytes.Buffer
	if err := Encode(&buf, m, f); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Encode writes m to w in format f.
func Encode(w io.Writer, m *Image, f Format) error {
	if len(m.Pixels) != m.Width*m.Height {
		return fmt.Errorf("image %dx%d holds %d pixels", m.Width, m.Height, len(m.Pixels))
	}
	g := m.Gray()
	switch f {
	case BMP:
		return bmp.Encode(w, g)
	case PNG:
		return png.Encode(w, g)
	case JPEG:
		return jpeg.Encode(w, g, &jpeg.Options{Quality: 90})
	case GIF:
		return gif.Encode(w, g, nil)
	case TIFF:
		return tiff.Encode(w, g, nil)
	}
	return fmt.Errorf("format %s not valid", f)
}
