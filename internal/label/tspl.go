package label

import (
	"fmt"
	"strings"
	"time"

	"ms-labeling/internal/models"
)

// tsplRenderer produces the line-based TSPL command stream for 203 dpi
// thermal printers (PC-365B family). When bitmapText is set every text run
// is rasterized into a BITMAP command, for devices without cyrillic glyphs.
type tsplRenderer struct {
	cfg        *models.TemplateConfig
	dpi        int
	bitmapText bool
	nowFn      func() time.Time
}

// legacyFontSizes maps the printer's built-in font names to pixel sizes for
// the bitmap fallback.
var legacyFontSizes = map[string]int{
	"1": 16,
	"2": 20,
	"3": 28,
	"4": 32,
	"5": 48,
}

func (r *tsplRenderer) render(data DishData) (string, error) {
	var cmds []string

	// Label framing: physical size, gap, orientation, buffer clear.
	cmds = append(cmds,
		fmt.Sprintf("SIZE %g mm, %g mm", r.cfg.PaperWidthMM, r.cfg.PaperHeightMM),
		fmt.Sprintf("GAP %g mm, 0 mm", r.cfg.PaperGapMM),
		"DIRECTION 1",
		"CLS",
	)

	var body []string
	if len(r.cfg.Elements) > 0 {
		body = r.renderElements(data)
	} else {
		body = r.renderLegacy(data)
	}
	cmds = append(cmds, body...)

	cmds = append(cmds, "PRINT 1")
	return strings.Join(cmds, "\n"), nil
}

func (r *tsplRenderer) renderLegacy(data DishData) []string {
	var cmds []string
	now := r.nowFn()
	shelf := now.Add(time.Duration(r.cfg.ShelfLifeHours) * time.Hour)

	title := r.cfg.Title
	cmds = r.text(cmds, title.X, title.Y, fontOr(title.Font, "3"), truncate(data.Name, 25))

	wc := r.cfg.WeightCalories
	wcText := fmt.Sprintf("Вес: %dг | %d ккал", data.WeightG, data.Calories)
	cmds = r.text(cmds, wc.X, wc.Y, fontOr(wc.Font, "2"), wcText)

	if r.cfg.Macros.On() {
		m := r.cfg.Macros
		cmds = r.text(cmds, m.X, m.Y, fontOr(m.Font, "2"), macrosLine(data, true, true, true))
	}

	if r.cfg.Ingredients.On() && len(data.Ingredients) > 0 {
		ing := r.cfg.Ingredients
		maxItems := ing.MaxLines
		if maxItems <= 0 {
			maxItems = 3
		}
		if maxItems > len(data.Ingredients) {
			maxItems = len(data.Ingredients)
		}
		text := "Состав: " + truncate(strings.Join(data.Ingredients[:maxItems], ", "), 50)
		cmds = r.text(cmds, ing.X, ing.Y, fontOr(ing.Font, "1"), text)
	}

	dt := r.cfg.DatetimeShelf
	cmds = r.text(cmds, dt.X, dt.Y, fontOr(dt.Font, "2"),
		"Изготовлено: "+now.Format("02.01 15:04"))
	cmds = r.text(cmds, dt.X, dt.Y+20, fontOr(dt.Font, "2"),
		"Годен до: "+shelf.Format("02.01 15:04"))

	if r.cfg.Barcode.On() && data.RKCode != "" {
		bc := r.cfg.Barcode
		cmds = append(cmds, fmt.Sprintf("BARCODE %d,%d,\"%s\",%d,1,0,%d,%d,\"%s\"",
			bc.X, bc.Y, typeOr(bc.Type, "128"), heightOr(bc.Height, 50),
			narrowOr(bc.NarrowBar), narrowOr(bc.NarrowBar), escapeTSPL(data.RKCode)))
	}

	if r.cfg.QR.Enabled && data.RKCode != "" {
		qr := r.cfg.QR
		size := qr.Size
		if size <= 0 {
			size = 4
		}
		cmds = append(cmds, fmt.Sprintf("QRCODE %d,%d,L,%d,A,0,\"%s\"",
			qr.X, qr.Y, size, escapeTSPL(data.RKCode)))
	}

	return cmds
}

func (r *tsplRenderer) renderElements(data DishData) []string {
	var cmds []string
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
			cmds = r.sizedText(cmds, x, y, size, bold, data.Name)
		case models.TextElement:
			text := e.Content
			if e.FieldName == "dish_name" {
				text = data.Name
			}
			cmds = r.sizedText(cmds, x, y, size, bold, text)
		case models.WeightElement:
			unit := ""
			if e.ShowUnit == nil || *e.ShowUnit {
				unit = "г"
			}
			cmds = r.sizedText(cmds, x, y, size, bold,
				fmt.Sprintf("Вес: %d%s  Ккал: %d", data.WeightG, unit, data.Calories))
		case models.MacrosElement:
			cmds = r.sizedText(cmds, x, y, size, bold,
				macrosLine(data, on(e.ShowProteins), on(e.ShowFats), on(e.ShowCarbs)))
		case models.EnergyElement:
			cmds = r.sizedText(cmds, x, y, size, bold, energyLine(data.Calories))
		case models.CompositionElement:
			if len(data.Ingredients) == 0 {
				continue
			}
			maxItems := e.MaxLines
			if maxItems <= 0 {
				maxItems = 3
			}
			if maxItems > len(data.Ingredients) {
				maxItems = len(data.Ingredients)
			}
			text := "Состав: " + truncate(strings.Join(data.Ingredients[:maxItems], ", "), 50)
			cmds = r.sizedText(cmds, x, y, size, bold, text)
		case models.DateTimeElement:
			cmds = r.sizedText(cmds, x, y, size, bold,
				labelOr(e.Label, "Изготовлено:")+" "+formatStamp(now, e.Format))
		case models.ShelfLifeElement:
			hours := e.Hours
			if hours <= 0 {
				hours = r.cfg.ShelfLifeHours
			}
			expiry := now.Add(time.Duration(hours) * time.Hour)
			cmds = r.sizedText(cmds, x, y, size, bold,
				labelOr(e.Label, "Годен до:")+" "+expiry.Format("02.01 15:04"))
		case models.BarcodeElement:
			if data.RKCode == "" {
				continue
			}
			cmds = append(cmds, fmt.Sprintf("BARCODE %d,%d,\"%s\",%d,1,0,%d,%d,\"%s\"",
				x, y, typeOr(e.BarType, "128"), heightOr(e.Height, 50),
				narrowOr(e.NarrowBar), narrowOr(e.NarrowBar), escapeTSPL(data.RKCode)))
		case models.QRElement:
			if data.RKCode == "" {
				continue
			}
			qrSize := e.Size
			if qrSize <= 0 {
				qrSize = 4
			}
			cmds = append(cmds, fmt.Sprintf("QRCODE %d,%d,L,%d,A,0,\"%s\"",
				x, y, qrSize, escapeTSPL(data.RKCode)))
		}
	}

	return cmds
}

// text emits one legacy text run using the printer's built-in fonts, or a
// rasterized BITMAP when the device lacks the needed glyphs. A failed
// rasterization skips the run, never the label.
func (r *tsplRenderer) text(cmds []string, x, y int, font, content string) []string {
	if content == "" {
		return cmds
	}
	if r.bitmapText {
		size, ok := legacyFontSizes[font]
		if !ok {
			size = 20
		}
		return r.bitmap(cmds, x, y, size, false, content)
	}
	return append(cmds, fmt.Sprintf("TEXT %d,%d,\"%s\",0,1,1,\"%s\"", x, y, font, escapeTSPL(content)))
}

func (r *tsplRenderer) sizedText(cmds []string, x, y, sizePx int, bold bool, content string) []string {
	if content == "" {
		return cmds
	}
	if r.bitmapText {
		return r.bitmap(cmds, x, y, sizePx, bold, content)
	}
	return append(cmds, fmt.Sprintf("TEXT %d,%d,\"2\",0,1,1,\"%s\"", x, y, escapeTSPL(content)))
}

func (r *tsplRenderer) bitmap(cmds []string, x, y, sizePx int, bold bool, content string) []string {
	// Clip the run to the printable width so a long name never emits a
	// BITMAP wider than the physical label.
	maxWidth := mmToDots(r.cfg.PaperWidthMM, r.dpi) - x
	if maxWidth <= 0 {
		return cmds
	}
	bmp, err := RasterizeText(content, sizePx, bold, maxWidth)
	if err != nil {
		// One unrenderable run must not abort the label.
		return cmds
	}
	return append(cmds, BitmapCommand(x, y, bmp))
}

// escapeTSPL strips characters that would break the quoted command syntax.
func escapeTSPL(text string) string {
	text = strings.ReplaceAll(text, `"`, "'")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", "")
	return text
}

func formatStamp(t time.Time, format string) string {
	switch format {
	case "date":
		return t.Format("02.01.2006")
	case "time":
		return t.Format("15:04")
	default:
		return t.Format("02.01 15:04")
	}
}

func fontOr(font, fallback string) string {
	if font == "" {
		return fallback
	}
	return font
}

func typeOr(t, fallback string) string {
	if t == "" {
		return fallback
	}
	return t
}

func heightOr(h, fallback int) int {
	if h <= 0 {
		return fallback
	}
	return h
}

func narrowOr(n int) int {
	if n <= 0 {
		return 2
	}
	return n
}

func labelOr(l, fallback string) string {
	if l == "" {
		return fallback
	}
	return l
}

func on(b *bool) bool { return b == nil || *b }
