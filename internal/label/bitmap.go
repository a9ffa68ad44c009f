package label

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ErrRender marks an element that could not be rasterized. The caller skips
// that one element and keeps rendering the rest of the label.
var ErrRender = errors.New("label: render error")

var (
	faceOnce    sync.Once
	faceErr     error
	regularFont *opentype.Font
	boldFont    *opentype.Font

	faceMu    sync.Mutex
	faceCache = map[faceKey]font.Face{}
)

type faceKey struct {
	size int
	bold bool
}

func loadFonts() error {
	faceOnce.Do(func() {
		regularFont, faceErr = opentype.Parse(goregular.TTF)
		if faceErr != nil {
			return
		}
		boldFont, faceErr = opentype.Parse(gobold.TTF)
	})
	return faceErr
}

// face returns a cached font.Face sized in pixels.
func face(sizePx int, bold bool) (font.Face, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	if sizePx <= 0 {
		sizePx = 12
	}

	faceMu.Lock()
	defer faceMu.Unlock()

	key := faceKey{size: sizePx, bold: bold}
	if f, ok := faceCache[key]; ok {
		return f, nil
	}

	src := regularFont
	if bold {
		src = boldFont
	}
	// 72 dpi makes Size a pixel count.
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    float64(sizePx),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	faceCache[key] = f
	return f, nil
}

// MeasureString returns the pixel advance of s at the given size/weight.
// Rasterization failure measures as zero width.
func MeasureString(s string, sizePx int, bold bool) int {
	f, err := face(sizePx, bold)
	if err != nil {
		return 0
	}
	return font.MeasureString(f, s).Ceil()
}

// Bitmap is a cropped monochrome rasterization of one text run. Set pixels
// are foreground (ink).
type Bitmap struct {
	Width  int
	Height int
	pixels [][]bool
}

func (b *Bitmap) At(x, y int) bool {
	return b.pixels[y][x]
}

// NewBitmap wraps a row-major pixel grid. Rows must be equal length.
func NewBitmap(pixels [][]bool) *Bitmap {
	height := len(pixels)
	width := 0
	if height > 0 {
		width = len(pixels[0])
	}
	return &Bitmap{Width: width, Height: height, pixels: pixels}
}

// RasterizeText draws s onto an off-screen 1-bit canvas of the given maximum
// width and autocrops to the tight bounding box of drawn pixels.
func RasterizeText(s string, sizePx int, bold bool, maxWidth int) (*Bitmap, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrRender)
	}
	f, err := face(sizePx, bold)
	if err != nil {
		return nil, err
	}

	metrics := f.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil() + 2
	if maxWidth <= 0 {
		maxWidth = font.MeasureString(f, s).Ceil()
	}

	canvas := image.NewGray(image.Rect(0, 0, maxWidth, height))
	for i := range canvas.Pix {
		canvas.Pix[i] = 0xFF // white background
	}

	drawer := font.Drawer{
		Dst:  canvas,
		Src:  image.Black,
		Face: f,
		Dot:  fixed.Point26_6{X: 0, Y: metrics.Ascent},
	}
	drawer.DrawString(s)

	return cropToInk(canvas)
}

// cropToInk trims the canvas to its inked bounding box on all four sides.
func cropToInk(canvas *image.Gray) (*Bitmap, error) {
	bounds := canvas.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := -1, -1

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if canvas.GrayAt(x, y).Y < 0x80 {
				if x < minX {
					minX = x
				}
				if y < minY {
					minY = y
				}
				if x > maxX {
					maxX = x
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if maxX < 0 {
		return nil, fmt.Errorf("%w: nothing drawn", ErrRender)
	}

	width := maxX - minX + 1
	height := maxY - minY + 1
	pixels := make([][]bool, height)
	for y := 0; y < height; y++ {
		pixels[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			pixels[y][x] = canvas.GrayAt(minX+x, minY+y).Y < 0x80
		}
	}

	return &Bitmap{Width: width, Height: height, pixels: pixels}, nil
}

// PackBitmap packs row-major, MSB-first: bit (7 - i) of each byte is set
// when the corresponding pixel is foreground; bytes are zero-padded where a
// row ends mid-byte.
func PackBitmap(b *Bitmap) (bytesPerRow int, data []byte) {
	bytesPerRow = (b.Width + 7) / 8
	data = make([]byte, 0, bytesPerRow*b.Height)

	for y := 0; y < b.Height; y++ {
		for byteIdx := 0; byteIdx < bytesPerRow; byteIdx++ {
			var value byte
			for bit := 0; bit < 8; bit++ {
				x := byteIdx*8 + bit
				if x < b.Width && b.At(x, y) {
					value |= 1 << (7 - bit)
				}
			}
			data = append(data, value)
		}
	}
	return bytesPerRow, data
}

// BitmapCommand renders a positioned TSPL BITMAP command (mode 0, overwrite)
// with the packed bytes hex-encoded.
func BitmapCommand(x, y int, b *Bitmap) string {
	bytesPerRow, data := PackBitmap(b)

	var sb strings.Builder
	fmt.Fprintf(&sb, "BITMAP %d,%d,%d,%d,0,", x, y, bytesPerRow, b.Height)
	for _, by := range data {
		fmt.Fprintf(&sb, "%02X", by)
	}
	return sb.String()
}
