package label_test

import (
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-labeling/internal/label"
	"ms-labeling/internal/models"
)

var testClock = func() time.Time {
	return time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
}

func legacyConfig() *models.TemplateConfig {
	off := false
	return &models.TemplateConfig{
		PaperWidthMM:   58,
		PaperHeightMM:  40,
		PaperGapMM:     2,
		ShelfLifeHours: 72,
		Title:          models.LegacySection{Font: "3", X: 10, Y: 10},
		WeightCalories: models.LegacySection{Font: "2", X: 10, Y: 60},
		Macros:         models.LegacySection{Font: "2", X: 10, Y: 95},
		Ingredients:    models.LegacySection{Font: "1", X: 10, Y: 130, MaxLines: 3},
		DatetimeShelf:  models.LegacySection{Font: "1", X: 10, Y: 200},
		Barcode:        models.BarcodeLegacy{Enabled: &off},
		QR:             models.QRLegacy{Enabled: false},
	}
}

func testDish() label.DishData {
	return label.DishData{
		Name:        "Борщ украинский",
		RKCode:      "2005",
		WeightG:     350,
		Calories:    2520,
		Protein:     12,
		Fat:         8,
		Carbs:       25,
		Ingredients: []string{"говядина", "свекла", "капуста", "морковь"},
		LabelType:   models.LabelMain,
	}
}

func TestEncodeTSPLFraming(t *testing.T) {
	enc := label.NewEncoder(203, false).WithClock(testClock)

	out, err := enc.Encode(testDish(), legacyConfig(), label.FormatTSPL)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "SIZE 58 mm, 40 mm", lines[0])
	assert.Equal(t, "GAP 2 mm, 0 mm", lines[1])
	assert.Equal(t, "DIRECTION 1", lines[2])
	assert.Equal(t, "CLS", lines[3])
	assert.Equal(t, "PRINT 1", lines[len(lines)-1])
}

func TestEncodeTSPLLegacyBody(t *testing.T) {
	enc := label.NewEncoder(203, false).WithClock(testClock)

	out, err := enc.Encode(testDish(), legacyConfig(), label.FormatTSPL)
	require.NoError(t, err)

	assert.Contains(t, out, `TEXT 10,10,"3",0,1,1,"Борщ украинский"`)
	assert.Contains(t, out, `"Вес: 350г | 2520 ккал"`)
	assert.Contains(t, out, `"Б:12г Ж:8г У:25г"`)
	assert.Contains(t, out, `"Состав: говядина, свекла, капуста"`)
	assert.Contains(t, out, `"Изготовлено: 14.03 12:30"`)
	assert.Contains(t, out, `"Годен до: 17.03 12:30"`)
	assert.NotContains(t, out, "BARCODE")
	assert.NotContains(t, out, "QRCODE")
}

func TestEncodeTSPLDeterministic(t *testing.T) {
	enc := label.NewEncoder(203, false).WithClock(testClock)

	first, err := enc.Encode(testDish(), legacyConfig(), label.FormatTSPL)
	require.NoError(t, err)
	second, err := enc.Encode(testDish(), legacyConfig(), label.FormatTSPL)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncodeTSPLElements(t *testing.T) {
	cfg := &models.TemplateConfig{
		PaperWidthMM:   58,
		PaperHeightMM:  40,
		PaperGapMM:     2,
		ShelfLifeHours: 24,
		Elements: models.ElementList{
			models.DishNameElement{ElementHeader: models.ElementHeader{
				Position: models.PositionMM{X: 10, Y: 5}, FontSize: 18, FontWeight: "bold"}},
			models.EnergyElement{ElementHeader: models.ElementHeader{
				Position: models.PositionMM{X: 10, Y: 15}}},
			models.QRElement{ElementHeader: models.ElementHeader{
				Position: models.PositionMM{X: 40, Y: 25}}, Size: 5},
		},
	}

	enc := label.NewEncoder(203, false).WithClock(testClock)
	out, err := enc.Encode(testDish(), cfg, label.FormatTSPL)
	require.NoError(t, err)

	// 10 mm at 203 dpi truncates to 79 dots.
	assert.Contains(t, out, `TEXT 79,39,"2",0,1,1,"Борщ украинский"`)
	// 2520 kcal/kg is 252 kcal and 1055,1 kJ per 100 g.
	assert.Contains(t, out, `"252 ккал / 1055,1 кДж"`)
	assert.Contains(t, out, `QRCODE 319,199,L,5,A,0,"2005"`)
}

func TestEncodeTSPLHiddenElementSkipped(t *testing.T) {
	hidden := false
	cfg := &models.TemplateConfig{
		PaperWidthMM: 58, PaperHeightMM: 40,
		Elements: models.ElementList{
			models.DishNameElement{ElementHeader: models.ElementHeader{
				Visible: &hidden, Position: models.PositionMM{X: 10, Y: 5}}},
		},
	}

	enc := label.NewEncoder(203, false).WithClock(testClock)
	out, err := enc.Encode(testDish(), cfg, label.FormatTSPL)
	require.NoError(t, err)
	assert.NotContains(t, out, "Борщ")
}

func TestEncodeTSPLEscapesQuotes(t *testing.T) {
	dish := testDish()
	dish.Name = `Салат "Цезарь"`

	enc := label.NewEncoder(203, false).WithClock(testClock)
	out, err := enc.Encode(dish, legacyConfig(), label.FormatTSPL)
	require.NoError(t, err)
	assert.Contains(t, out, `"Салат 'Цезарь'"`)
}

func TestEncodeTSPLBitmapText(t *testing.T) {
	enc := label.NewEncoder(203, true).WithClock(testClock)

	out, err := enc.Encode(testDish(), legacyConfig(), label.FormatTSPL)
	require.NoError(t, err)

	assert.NotContains(t, out, "TEXT ")
	assert.Contains(t, out, "BITMAP 10,10,")
}

func TestEncodeTSPLBitmapTextClipsToLabelWidth(t *testing.T) {
	dish := testDish()
	dish.Name = strings.Repeat("Очень длинное название блюда ", 4)

	cfg := &models.TemplateConfig{
		PaperWidthMM: 58, PaperHeightMM: 40,
		Elements: models.ElementList{
			models.DishNameElement{ElementHeader: models.ElementHeader{
				Position: models.PositionMM{X: 2, Y: 5}, FontSize: 24}},
		},
	}

	enc := label.NewEncoder(203, true).WithClock(testClock)
	out, err := enc.Encode(dish, cfg, label.FormatTSPL)
	require.NoError(t, err)

	// 58 mm at 203 dpi is 463 dots; every run must stay inside that,
	// modulo the zero padding of the last row byte.
	found := false
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "BITMAP ") {
			continue
		}
		found = true
		parts := strings.SplitN(strings.TrimPrefix(line, "BITMAP "), ",", 5)
		require.Len(t, parts, 5)
		x, err := strconv.Atoi(parts[0])
		require.NoError(t, err)
		bytesPerRow, err := strconv.Atoi(parts[2])
		require.NoError(t, err)
		assert.LessOrEqual(t, x+bytesPerRow*8, 463+7)
	}
	assert.True(t, found)
}

func TestEncodePNG(t *testing.T) {
	enc := label.NewEncoder(203, false).WithClock(testClock)

	out, err := enc.Encode(testDish(), legacyConfig(), label.FormatPNG)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)
	require.Greater(t, len(raw), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw[:4])
}

func TestTemplateConfigElementsJSON(t *testing.T) {
	tpl := &models.LabelTemplate{Config: []byte(`{
		"paper_width_mm": 58,
		"paper_height_mm": 40,
		"elements": [
			{"type": "dish_name", "position": {"x": 5, "y": 3}, "fontSize": 18, "fontWeight": "bold"},
			{"type": "weight", "position": {"x": 5, "y": 12}, "showUnit": false},
			{"type": "hologram", "position": {"x": 0, "y": 0}},
			{"type": "composition", "position": {"x": 5, "y": 20}, "maxLines": 2, "maxWidthMm": 48}
		]
	}`)}

	cfg, err := tpl.ParseConfig()
	require.NoError(t, err)

	// The unknown "hologram" element is dropped, not fatal.
	require.Len(t, cfg.Elements, 3)

	name, ok := cfg.Elements[0].(models.DishNameElement)
	require.True(t, ok)
	assert.Equal(t, 18, name.FontSize)
	assert.Equal(t, "bold", name.FontWeight)

	weight, ok := cfg.Elements[1].(models.WeightElement)
	require.True(t, ok)
	require.NotNil(t, weight.ShowUnit)
	assert.False(t, *weight.ShowUnit)

	comp, ok := cfg.Elements[2].(models.CompositionElement)
	require.True(t, ok)
	assert.Equal(t, 2, comp.MaxLines)
	assert.Equal(t, 48.0, comp.MaxWidthMM)
}
