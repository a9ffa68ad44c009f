package label

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"ms-labeling/internal/models"
)

// imageRenderer rasterizes the whole label into a PNG for driver-based
// printing. Output is base64 so it shares the opaque payload column with
// TSPL text.
type imageRenderer struct {
	cfg   *models.TemplateConfig
	dpi   int
	nowFn func() time.Time
}

func (r *imageRenderer) render(data DishData) (string, error) {
	widthPx := mmToDots(r.cfg.PaperWidthMM, r.dpi)
	heightPx := mmToDots(r.cfg.PaperHeightMM, r.dpi)
	if widthPx <= 0 || heightPx <= 0 {
		return "", fmt.Errorf("%w: paper size %gx%g mm", ErrRender,
			r.cfg.PaperWidthMM, r.cfg.PaperHeightMM)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, widthPx, heightPx))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	if len(r.cfg.Elements) > 0 {
		r.drawElements(canvas, data, widthPx)
	} else {
		r.drawLegacy(canvas, data)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return "", fmt.Errorf("%w: png encode: %v", ErrRender, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (r *imageRenderer) drawElements(canvas *image.RGBA, data DishData, widthPx int) {
	now := r.nowFn()

	for _, el := range r.cfg.Elements {
		h := el.Header()
		if !h.Shown() {
			continue
		}
		x := mmToDots(h.Position.X, r.dpi)
		y := mmToDots(h.Position.Y, r.dpi)
		size := h.FontSize
		if size <= 0 {
			size = 14
		}
		bold := h.FontWeight == "bold"

		switch e := el.(type) {
		case models.DishNameElement:
			drawText(canvas, x, y, size, bold, data.Name)
		case models.TextElement:
			text := e.Content
			if e.FieldName == "dish_name" {
				text = data.Name
			}
			drawText(canvas, x, y, size, bold, text)
		case models.WeightElement:
			unit := ""
			if e.ShowUnit == nil || *e.ShowUnit {
				unit = "г"
			}
			drawText(canvas, x, y, size, bold,
				fmt.Sprintf("Вес: %d%s  Ккал: %d", data.WeightG, unit, data.Calories))
		case models.MacrosElement:
			drawText(canvas, x, y, size, bold,
				macrosLine(data, on(e.ShowProteins), on(e.ShowFats), on(e.ShowCarbs)))
		case models.EnergyElement:
			drawText(canvas, x, y, size, bold, energyLine(data.Calories))
		case models.CompositionElement:
			if len(data.Ingredients) == 0 {
				continue
			}
			r.drawComposition(canvas, e, x, y, size, bold, data, widthPx)
		case models.DateTimeElement:
			drawText(canvas, x, y, size, bold,
				labelOr(e.Label, "Изготовлено:")+" "+formatStamp(now, e.Format))
		case models.ShelfLifeElement:
			hours := e.Hours
			if hours <= 0 {
				hours = r.cfg.ShelfLifeHours
			}
			expiry := now.Add(time.Duration(hours) * time.Hour)
			drawText(canvas, x, y, size, bold,
				labelOr(e.Label, "Годен до:")+" "+expiry.Format("02.01 15:04"))
		case models.QRElement:
			if data.RKCode == "" {
				continue
			}
			moduleSize := e.Size
			if moduleSize <= 0 {
				moduleSize = 4
			}
			drawQR(canvas, x, y, moduleSize, data.RKCode)
		}
	}
}

// drawComposition renders the ingredient list as a width-bounded, word-
// wrapped block.
func (r *imageRenderer) drawComposition(canvas *image.RGBA, e models.CompositionElement,
	x, y, size int, bold bool, data DishData, widthPx int) {

	maxItems := e.MaxLines
	if maxItems <= 0 {
		maxItems = 3
	}
	if maxItems > len(data.Ingredients) {
		maxItems = len(data.Ingredients)
	}
	text := "Состав: " + strings.Join(data.Ingredients[:maxItems], ", ")

	maxWidth := widthPx - x
	if e.MaxWidthMM > 0 {
		maxWidth = mmToDots(e.MaxWidthMM, r.dpi)
	}

	lines := WrapText(text, maxWidth, func(s string) int {
		return MeasureString(s, size, bold)
	})

	lineHeight := size + 4
	for i, line := range lines {
		drawText(canvas, x, y+i*lineHeight, size, bold, line)
	}
}

func (r *imageRenderer) drawLegacy(canvas *image.RGBA, data DishData) {
	now := r.nowFn()
	shelf := now.Add(time.Duration(r.cfg.ShelfLifeHours) * time.Hour)

	y := 20
	drawText(canvas, 10, y, 20, true, truncate(data.Name, 25))
	y += 40

	drawText(canvas, 10, y, 14, false,
		fmt.Sprintf("Вес: %dг | %d ккал", data.WeightG, data.Calories))
	y += 30

	if r.cfg.Macros.On() {
		drawText(canvas, 10, y, 14, false, macrosLine(data, true, true, true))
		y += 30
	}

	if r.cfg.Ingredients.On() && len(data.Ingredients) > 0 {
		maxItems := 3
		if maxItems > len(data.Ingredients) {
			maxItems = len(data.Ingredients)
		}
		text := "Состав: " + truncate(strings.Join(data.Ingredients[:maxItems], ", "), 50)
		drawText(canvas, 10, y, 12, false, text)
		y += 30
	}

	drawText(canvas, 10, y, 12, false, "Изготовлено: "+now.Format("02.01 15:04"))
	y += 25
	drawText(canvas, 10, y, 12, false, "Годен до: "+shelf.Format("02.01 15:04"))
}

// drawText draws one run with its top-left corner at (x, y). Failures are
// swallowed: a missing run must not abort the label.
func drawText(canvas *image.RGBA, x, y, sizePx int, bold bool, text string) {
	if text == "" {
		return
	}
	f, err := face(sizePx, bold)
	if err != nil {
		return
	}
	drawer := font.Drawer{
		Dst:  canvas,
		Src:  image.Black,
		Face: f,
		Dot: fixed.Point26_6{
			X: fixed.I(x),
			Y: fixed.I(y) + f.Metrics().Ascent,
		},
	}
	drawer.DrawString(text)
}

func drawQR(canvas *image.RGBA, x, y, moduleSize int, content string) {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return
	}
	grid := qr.Bitmap()
	for row := range grid {
		for col := range grid[row] {
			if !grid[row][col] {
				continue
			}
			for dy := 0; dy < moduleSize; dy++ {
				for dx := 0; dx < moduleSize; dx++ {
					canvas.Set(x+col*moduleSize+dx, y+row*moduleSize+dy, color.Black)
				}
			}
		}
	}
}
