package label

import (
	"fmt"
	"strings"
	"time"

	"ms-labeling/internal/models"
)

// Format selects the target payload of one render.
type Format int

const (
	// FormatTSPL is the line-based printer command stream for direct TCP
	// printing.
	FormatTSPL Format = iota
	// FormatPNG is a rasterized label image for driver-based printing.
	FormatPNG
)

// DishData is the flat dish shape both layouts resolve against.
type DishData struct {
	Name        string
	RKCode      string
	WeightG     int
	Calories    int
	Protein     float64
	Fat         float64
	Carbs       float64
	Ingredients []string
	LabelType   string
}

// DishToData flattens a dish master record for the main label.
func DishToData(d *models.Dish, labelType string) DishData {
	return DishData{
		Name:        d.Name,
		RKCode:      d.RKCode,
		WeightG:     d.WeightG,
		Calories:    d.Calories,
		Protein:     d.Protein,
		Fat:         d.Fat,
		Carbs:       d.Carbs,
		Ingredients: d.Ingredients,
		LabelType:   labelType,
	}
}

// ExtraToData flattens a supplementary label; extras carry no ingredient
// list and reuse the parent's product code.
func ExtraToData(parent *models.Dish, ex models.ExtraLabel) DishData {
	return DishData{
		Name:      ex.Name,
		RKCode:    parent.RKCode,
		WeightG:   ex.WeightG,
		Calories:  ex.Calories,
		Protein:   ex.Protein,
		Fat:       ex.Fat,
		Carbs:     ex.Carbs,
		LabelType: models.LabelExtra,
	}
}

// Encoder turns dish data plus a layout template into a printer payload.
// TSPL output is the command text itself; PNG output is base64 so both fit
// the same opaque payload column.
type Encoder struct {
	DPI        int
	BitmapText bool
	nowFn      func() time.Time
}

func NewEncoder(dpi int, bitmapText bool) *Encoder {
	return &Encoder{DPI: dpi, BitmapText: bitmapText, nowFn: time.Now}
}

// WithClock overrides the timestamp source, for reproducible output.
func (e *Encoder) WithClock(nowFn func() time.Time) *Encoder {
	e.nowFn = nowFn
	return e
}

// Encode renders one label payload.
func (e *Encoder) Encode(data DishData, cfg *models.TemplateConfig, format Format) (string, error) {
	switch format {
	case FormatTSPL:
		r := &tsplRenderer{cfg: cfg, dpi: e.DPI, bitmapText: e.BitmapText, nowFn: e.nowFn}
		return r.render(data)
	case FormatPNG:
		r := &imageRenderer{cfg: cfg, dpi: e.DPI, nowFn: e.nowFn}
		return r.render(data)
	default:
		return "", fmt.Errorf("%w: unknown format %d", ErrRender, format)
	}
}

// mmToDots converts millimeters to device dots.
func mmToDots(mm float64, dpi int) int {
	return int(mm * float64(dpi) / 25.4)
}

// energyLine formats the per-100g energy values: kcal from the per-kg
// figure, kilojoules at one decimal with a comma separator.
func energyLine(caloriesPerKg int) string {
	kcal := float64(caloriesPerKg) / 10.0
	kj := kcal * 4.1868
	kjStr := strings.Replace(fmt.Sprintf("%.1f", kj), ".", ",", 1)
	return fmt.Sprintf("%.0f ккал / %s кДж", kcal, kjStr)
}

func macrosLine(d DishData, showProtein, showFat, showCarbs bool) string {
	var parts []string
	if showProtein {
		parts = append(parts, fmt.Sprintf("Б:%.0fг", d.Protein))
	}
	if showFat {
		parts = append(parts, fmt.Sprintf("Ж:%.0fг", d.Fat))
	}
	if showCarbs {
		parts = append(parts, fmt.Sprintf("У:%.0fг", d.Carbs))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, max int) string {
	if len([]rune(s)) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
