// Package stores wires the generic collection sync to each screen's data:
// which remote query to open for a viewer, how to derive the view, and the
// view models handed to presentation clients.
package stores

import (
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/applied"
	"github.com/matheus3301/shiftsync/internal/availability"
	"github.com/matheus3301/shiftsync/internal/bus"
	"github.com/matheus3301/shiftsync/internal/feed"
	"github.com/matheus3301/shiftsync/internal/geo"
	"github.com/matheus3301/shiftsync/internal/model"
	"github.com/matheus3301/shiftsync/internal/remote"
)

// Store names, used in logs and bus event kinds.
const (
	NameAvailable     = "available_shifts"
	NameMyShifts      = "my_shifts"
	NameDashShifts    = "dashboard_shifts"
	NameDashJobs      = "dashboard_jobs"
	NameJobs          = "jobs"
	NameConversations = "conversations"
)

// Deps are the collaborators shared by every store of a session.
type Deps struct {
	Remote   remote.Service
	Bus      *bus.Bus
	Logger   *zap.Logger
	Calendar *availability.Calendar
	Applied  *applied.Marks
	OfferTTL time.Duration
	Now      func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// viewer holds the id a store is subscribed for. Derive functions read it
// while the consumer goroutine applies a snapshot.
type viewer struct {
	mu stdsync.RWMutex
	id string
}

func (v *viewer) set(id string) {
	v.mu.Lock()
	v.id = id
	v.mu.Unlock()
}

func (v *viewer) get() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.id
}

// ShiftCard is the presentation view of one shift.
type ShiftCard struct {
	model.Shift
	TotalPay string `json:"total_pay,omitempty"`
	// Distance is empty when either position is unknown; it is never a
	// placeholder.
	Distance string `json:"distance,omitempty"`
	IsOffer  bool   `json:"is_offer"`
	Applied  bool   `json:"applied"`
	Date     string `json:"date,omitempty"`
}

// NewShiftCard derives the card for s. origin is the viewer's position, nil
// when unknown or denied.
func NewShiftCard(s model.Shift, origin *geo.Coordinates, marks *applied.Marks, loc *time.Location) ShiftCard {
	card := ShiftCard{Shift: s, IsOffer: s.IsOffer(), Date: s.Date(loc)}
	if pay, ok := feed.TotalPay(s); ok {
		card.TotalPay = pay.String()
	}
	if label, ok := geo.Label(origin, s.Coordinates); ok {
		card.Distance = label
	}
	if marks != nil {
		card.Applied = marks.Has(applied.Shift, s.ID)
	}
	return card
}
