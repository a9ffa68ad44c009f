package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// LabelTemplate is a stored label layout. Config holds either the legacy
// fixed field set or an ordered elements[] layout from the visual editor.
type LabelTemplate struct {
	bun.BaseModel `bun:"table:label_templates"`

	ID        int64           `bun:"id,pk,autoincrement"`
	Name      string          `bun:"name,notnull"`
	BrandID   string          `bun:"brand_id"`
	IsDefault bool            `bun:"is_default,notnull,default:false"`
	Config    json.RawMessage `bun:"config,notnull"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time       `bun:"updated_at,nullzero"`
}

// ParseConfig decodes the stored JSON config.
func (t *LabelTemplate) ParseConfig() (*TemplateConfig, error) {
	var cfg TemplateConfig
	if err := json.Unmarshal(t.Config, &cfg); err != nil {
		return nil, fmt.Errorf("template %d config: %w", t.ID, err)
	}
	return &cfg, nil
}

// TemplateConfig describes one label layout. When Elements is non-empty the
// visual layout wins; otherwise the legacy fixed sections are used.
type TemplateConfig struct {
	PaperWidthMM   float64 `json:"paper_width_mm"`
	PaperHeightMM  float64 `json:"paper_height_mm"`
	PaperGapMM     float64 `json:"paper_gap_mm"`
	ShelfLifeHours int     `json:"shelf_life_hours"`

	Elements ElementList `json:"elements,omitempty"`

	// Legacy fixed layout sections.
	Title          LegacySection `json:"title"`
	WeightCalories LegacySection `json:"weight_calories"`
	Macros         LegacySection `json:"bju"`
	Ingredients    LegacySection `json:"ingredients"`
	DatetimeShelf  LegacySection `json:"datetime_shelf"`
	Barcode        BarcodeLegacy `json:"barcode"`
	QR             QRLegacy      `json:"qr"`
}

// LegacySection positions one fixed block of the legacy layout. Coordinates
// are device dots, fonts are the printer's built-in font names.
type LegacySection struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Font     string `json:"font"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	MaxLines int    `json:"max_lines,omitempty"`
}

// On reports whether the section is enabled; sections default to on.
func (s LegacySection) On() bool { return s.Enabled == nil || *s.Enabled }

type BarcodeLegacy struct {
	Enabled   *bool  `json:"enabled,omitempty"`
	Type      string `json:"type"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Height    int    `json:"height"`
	NarrowBar int    `json:"narrow_bar"`
}

// On reports whether the barcode is enabled; it defaults to on.
func (b BarcodeLegacy) On() bool { return b.Enabled == nil || *b.Enabled }

type QRLegacy struct {
	Enabled bool `json:"enabled"`
	X       int  `json:"x"`
	Y       int  `json:"y"`
	Size    int  `json:"size"`
}

// PositionMM is an element anchor in millimeters from the label's top-left.
type PositionMM struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ElementHeader is the part every layout element shares.
type ElementHeader struct {
	Visible    *bool      `json:"visible,omitempty"`
	Position   PositionMM `json:"position"`
	FontSize   int        `json:"fontSize,omitempty"`
	FontWeight string     `json:"fontWeight,omitempty"`
}

// Shown reports element visibility; elements default to visible.
func (h ElementHeader) Shown() bool { return h.Visible == nil || *h.Visible }

// Element is one layout element variant. The closed set below replaces the
// original's free-form dicts so renderers can dispatch on concrete types.
type Element interface {
	Header() ElementHeader
}

type DishNameElement struct {
	ElementHeader
}

type TextElement struct {
	ElementHeader
	FieldName string `json:"fieldName,omitempty"`
	Content   string `json:"content,omitempty"`
}

type WeightElement struct {
	ElementHeader
	ShowUnit *bool `json:"showUnit,omitempty"`
}

type MacrosElement struct {
	ElementHeader
	ShowProteins *bool `json:"showProteins,omitempty"`
	ShowFats     *bool `json:"showFats,omitempty"`
	ShowCarbs    *bool `json:"showCarbs,omitempty"`
}

type EnergyElement struct {
	ElementHeader
}

type CompositionElement struct {
	ElementHeader
	MaxLines   int     `json:"maxLines,omitempty"`
	MaxWidthMM float64 `json:"maxWidthMm,omitempty"`
}

type DateTimeElement struct {
	ElementHeader
	Label  string `json:"label,omitempty"`
	Format string `json:"format,omitempty"`
}

type ShelfLifeElement struct {
	ElementHeader
	Label string `json:"label,omitempty"`
	Hours int    `json:"hours,omitempty"`
}

type BarcodeElement struct {
	ElementHeader
	BarType   string `json:"barType,omitempty"`
	Height    int    `json:"height,omitempty"`
	NarrowBar int    `json:"narrowBar,omitempty"`
}

type QRElement struct {
	ElementHeader
	Size int `json:"size,omitempty"`
}

func (e DishNameElement) Header() ElementHeader    { return e.ElementHeader }
func (e TextElement) Header() ElementHeader        { return e.ElementHeader }
func (e WeightElement) Header() ElementHeader      { return e.ElementHeader }
func (e MacrosElement) Header() ElementHeader      { return e.ElementHeader }
func (e EnergyElement) Header() ElementHeader      { return e.ElementHeader }
func (e CompositionElement) Header() ElementHeader { return e.ElementHeader }
func (e DateTimeElement) Header() ElementHeader    { return e.ElementHeader }
func (e ShelfLifeElement) Header() ElementHeader   { return e.ElementHeader }
func (e BarcodeElement) Header() ElementHeader     { return e.ElementHeader }
func (e QRElement) Header() ElementHeader          { return e.ElementHeader }

// ElementList decodes the editor's tagged JSON array into concrete variants.
type ElementList []Element

func (l *ElementList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(ElementList, 0, len(raw))
	for i, msg := range raw {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}

		var el Element
		var err error
		switch head.Type {
		case "dish_name":
			var e DishNameElement
			err = json.Unmarshal(msg, &e)
			el = e
		case "text":
			var e TextElement
			err = json.Unmarshal(msg, &e)
			el = e
		case "weight":
			var e WeightElement
			err = json.Unmarshal(msg, &e)
			el = e
		case "bju":
			var e MacrosElement
			err = json.Unmarshal(msg, &e)
			el = e
		case "energy":
			var e EnergyElement
			err = json.Unmarshal(msg, &e)
			el = e
		case "composition":
			var e CompositionElement
			err = json.Unmarshal(msg, &e)
			el = e
		case "datetime":
			var e DateTimeElement
			err = json.Unmarshal(msg, &e)
			el = e
		case "shelf_life":
			var e ShelfLifeElement
			err = json.Unmarshal(msg, &e)
			el = e
		case "barcode":
			var e BarcodeElement
			err = json.Unmarshal(msg, &e)
			el = e
		case "qr":
			var e QRElement
			err = json.Unmarshal(msg, &e)
			el = e
		default:
			// Unknown element types from newer editors are skipped, not fatal.
			continue
		}
		if err != nil {
			return fmt.Errorf("element %d (%s): %w", i, head.Type, err)
		}
		out = append(out, el)
	}

	*l = out
	return nil
}
