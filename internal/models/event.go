package models

// rKeeper webhook event kinds. SaveOrder and QuitOrder commit the editing
// session; their changelog is unreliable, so reconciliation rebuilds the
// item set from the full per-session dump instead.
const (
	EventNewOrder     = "New Order"
	EventOrderChanged = "Order Changed"
	EventOpenOrder    = "Open Order"
	EventSaveOrder    = "Save Order"
	EventQuitOrder    = "Quit Order"
)

// PosEvent is the normalized form of one rKeeper webhook payload. It lives
// only for the duration of a single reconciliation call.
type PosEvent struct {
	EventType   string
	VisitID     string
	OrderIdent  string
	TableCode   string
	TableName   string
	OrderSum    float64
	Paid        bool
	Finished    bool
	TotalPieces int
	// TotalKnown is false when the payload carried no totalPieces attribute
	// and the item set is only a delta, so the remaining total cannot be
	// derived. Cancellation detection requires a known total.
	TotalKnown bool
	Items      []ItemChange
}

// ItemChange is one grouped line-item change. Entries sharing an rk_code are
// merged by the parser before they get here, so rk_code is unique within one
// event. Quantities are portions, prices are major currency units.
type ItemChange struct {
	RKCode      string
	RKID        string
	Name        string
	Uni         int
	OldQuantity int
	NewQuantity int
	Delta       int
	Price       float64
	IsNew       bool
	IsDeleted   bool
}

// FullState reports whether reconciliation must replace the whole item set
// rather than apply the changelog.
func (e *PosEvent) FullState() bool {
	return e.EventType == EventSaveOrder || e.EventType == EventQuitOrder
}
