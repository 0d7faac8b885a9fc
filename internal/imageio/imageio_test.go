package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthonynsimon/bild/clone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func gradient(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.SetGray(x, y, color.Gray{Y: uint8((x*7 + y*3) % 256)})
		}
	}
	return g
}

func TestReadBMP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.bmp")
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, gradient(20, 10)))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	img, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, BMP, img.Format)
	assert.Equal(t, 20, img.Width)
	assert.Equal(t, 10, img.Height)
	assert.Equal(t, float32(3*7+2*3), img.Pixels[2*20+3])
}

func TestDecodeKeepsEveryPixel(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 2))
	copy(src.Pix, []uint8{10, 20, 30, 40, 250, 0, 128, 7})
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, src))

	img, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 20, 30, 40, 250, 0, 128, 7}, img.Pixels)
}

func TestReadColorPNGBecomesGray(t *testing.T) {
	rgba := clone.AsRGBA(gradient(8, 8))
	rgba.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, rgba))
	path := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	img, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, PNG, img.Format)
	assert.Greater(t, img.Pixels[0], float32(0))
	assert.Less(t, img.Pixels[0], float32(255))
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := New(4, 3, BMP)
	for i := range m.Pixels {
		m.Pixels[i] = float32(i * 20)
	}
	m.Pixels[0] = -5
	m.Pixels[1] = 300

	for _, name := range []string{"out.bmp", "out.png", "out.tiff", "out.raw"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Write(path, m), name)
		back, err := Read(path)
		require.NoError(t, err, name)
		assert.Equal(t, float32(0), back.Pixels[0], name)
		assert.Equal(t, float32(255), back.Pixels[1], name)
		assert.Equal(t, m.Pixels[5], back.Pixels[5], name)
	}
}

func TestReadRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.bmp")
	require.NoError(t, os.WriteFile(path, []byte("just some text, not pixels"), 0o644))
	_, err := Read(path)
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestExtToFormat(t *testing.T) {
	f, err := ExtToFormat(".JPG")
	require.NoError(t, err)
	assert.Equal(t, JPEG, f)
	_, err = ExtToFormat("webp")
	assert.Error(t, err)
}
