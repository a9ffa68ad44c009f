package rkeeper

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"

	"ms-labeling/internal/models"
)

// ErrParse marks a webhook payload that could not be normalized. The caller
// still answers 200 to the POS; see the webhook handler.
var ErrParse = errors.New("rkeeper: parse error")

// gramsPerPortion converts raw rKeeper quantities to kitchen portions.
// 999 g is 0 portions on purpose (truncation, not rounding).
const gramsPerPortion = 1000

type rk7Query struct {
	XMLName xml.Name  `xml:"RK7Query"`
	Action  rk7Action `xml:"a"`
}

type rk7Action struct {
	Name  string    `xml:"name,attr"`
	Order *rk7Order `xml:"Order"`
}

type rk7Order struct {
	Visit       string       `xml:"visit,attr"`
	OrderIdent  string       `xml:"orderIdent,attr"`
	OrderSum    string       `xml:"orderSum,attr"`
	Paid        string       `xml:"paid,attr"`
	Finished    string       `xml:"finished,attr"`
	TotalPieces string       `xml:"totalPieces,attr"`
	Table       *rk7Table    `xml:"Table"`
	Sessions    []rk7Session `xml:"Session"`
	ChangeLog   *rk7Log      `xml:"ChangeLog"`
}

type rk7Table struct {
	Code string `xml:"code,attr"`
	Name string `xml:"name,attr"`
}

type rk7Session struct {
	Dishes []rk7Dish `xml:"Dish"`
}

type rk7Log struct {
	Dishes []rk7LogDish `xml:"Dish"`
}

type rk7Dish struct {
	ID       string `xml:"id,attr"`
	Code     string `xml:"code,attr"`
	Name     string `xml:"name,attr"`
	Uni      string `xml:"uni,attr"`
	Quantity string `xml:"quantity,attr"`
	Price    string `xml:"price,attr"`
}

type rk7LogDish struct {
	ID       string `xml:"id,attr"`
	Code     string `xml:"code,attr"`
	Name     string `xml:"name,attr"`
	Uni      string `xml:"uni,attr"`
	OldValue string `xml:"oldvalue,attr"`
	NewValue string `xml:"newvalue,attr"`
	Price    string `xml:"price,attr"`
	Deleted  string `xml:"deleted,attr"`
}

// itemGroup accumulates every line entry for one rk_code. The POS splits a
// logical product across transient line ids (remove + re-add, multiple
// sessions), so raw gram quantities are summed per code before the portion
// conversion.
type itemGroup struct {
	change   models.ItemChange
	oldGrams int
	newGrams int
	deleted  bool
}

// Parse normalizes one webhook payload into a PosEvent.
func Parse(data []byte) (*models.PosEvent, error) {
	var q rk7Query
	if err := xml.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if q.Action.Order == nil {
		return nil, fmt.Errorf("%w: missing Order element", ErrParse)
	}
	ord := q.Action.Order
	if ord.Visit == "" || ord.OrderIdent == "" {
		return nil, fmt.Errorf("%w: missing visit/orderIdent", ErrParse)
	}

	event := &models.PosEvent{
		EventType:  q.Action.Name,
		VisitID:    ord.Visit,
		OrderIdent: ord.OrderIdent,
		OrderSum:   float64(atoi(ord.OrderSum)) / 100.0,
		Paid:       parseFlag(ord.Paid),
		Finished:   parseFlag(ord.Finished),
	}
	if ord.Table != nil {
		event.TableCode = ord.Table.Code
		event.TableName = ord.Table.Name
	}

	// Commit events carry an unreliable changelog; rebuild from the complete
	// per-session dump instead. Everything else applies the delta log only.
	if event.FullState() {
		event.Items = groupSessions(ord.Sessions)
	} else if ord.ChangeLog != nil {
		event.Items = groupChangeLog(ord.ChangeLog.Dishes)
	}

	// A full-state dump sums to the true remaining total; a delta changelog
	// lists only the changed lines, so without the attribute the total stays
	// unknown and cancellation detection is skipped downstream.
	switch {
	case ord.TotalPieces != "":
		event.TotalPieces = atoi(ord.TotalPieces)
		event.TotalKnown = true
	case event.FullState():
		for _, it := range event.Items {
			event.TotalPieces += it.NewQuantity
		}
		event.TotalKnown = true
	}

	return event, nil
}

func groupSessions(sessions []rk7Session) []models.ItemChange {
	groups := make(map[string]*itemGroup)
	var order []string

	for _, session := range sessions {
		for _, dish := range session.Dishes {
			code := dish.Code
			if code == "" {
				code = dish.ID
			}
			g, ok := groups[code]
			if !ok {
				g = &itemGroup{change: models.ItemChange{
					RKCode: code,
					RKID:   dish.ID,
					Name:   dish.Name,
					Uni:    atoi(dish.Uni),
					Price:  float64(atoi(dish.Price)) / 100.0,
					IsNew:  true,
				}}
				groups[code] = g
				order = append(order, code)
			}
			g.newGrams += atoi(dish.Quantity)
		}
	}

	return finishGroups(groups, order)
}

func groupChangeLog(dishes []rk7LogDish) []models.ItemChange {
	groups := make(map[string]*itemGroup)
	var order []string

	for _, dish := range dishes {
		code := dish.Code
		if code == "" {
			code = dish.ID
		}
		g, ok := groups[code]
		if !ok {
			g = &itemGroup{change: models.ItemChange{
				RKCode: code,
				RKID:   dish.ID,
				Name:   dish.Name,
				Uni:    atoi(dish.Uni),
				Price:  float64(atoi(dish.Price)) / 100.0,
			}}
			groups[code] = g
			order = append(order, code)
		}
		g.oldGrams += atoi(dish.OldValue)
		g.newGrams += atoi(dish.NewValue)
		if parseFlag(dish.Deleted) {
			g.deleted = true
		}
	}

	return finishGroups(groups, order)
}

// finishGroups converts accumulated gram totals to portions, preserving the
// first-seen order of product codes.
func finishGroups(groups map[string]*itemGroup, order []string) []models.ItemChange {
	items := make([]models.ItemChange, 0, len(order))
	for _, code := range order {
		g := groups[code]
		c := g.change
		c.OldQuantity = g.oldGrams / gramsPerPortion
		c.NewQuantity = g.newGrams / gramsPerPortion
		c.Delta = c.NewQuantity - c.OldQuantity
		c.IsNew = c.IsNew || g.oldGrams == 0
		c.IsDeleted = g.deleted || (g.newGrams == 0 && g.oldGrams > 0)
		items = append(items, c)
	}
	return items
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseFlag(s string) bool {
	switch s {
	case "1", "true", "True", "yes":
		return true
	}
	return false
}
