package approval

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// BookingSignal holds the rule-relevant facts of one booking
type BookingSignal struct {
	BookingID        int64
	ModeName         string
	EstimatedCost    decimal.Decimal
	DistanceKm       *decimal.Decimal
	IsDisposal       bool
	TripDurationDays *int
}

var carKeywords = []string{"car", "own car", "pickup", "drop"}

// IsFlight reports whether a mode name denotes air travel
func IsFlight(mode string) bool {
	return strings.Contains(strings.ToLower(mode), "flight")
}

// IsCarRelated reports whether a mode name denotes road transport by car
func IsCarRelated(mode string) bool {
	m := strings.ToLower(mode)
	for _, kw := range carKeywords {
		if strings.Contains(m, kw) {
			return true
		}
	}
	return false
}

// Aggregate flattens the bookings of every trip into signals, in trip then booking order
func Aggregate(app *entity.TravelApplication) []BookingSignal {
	if app == nil {
		return nil
	}

	var signals []BookingSignal
	for _, trip := range app.Trips {
		if trip == nil {
			continue
		}
		duration := tripDurationDays(trip)
		for _, b := range trip.Bookings {
			if b == nil {
				continue
			}
			signals = append(signals, BookingSignal{
				BookingID:        b.ID,
				ModeName:         strings.TrimSpace(b.ModeName),
				EstimatedCost:    b.EstimatedCost,
				DistanceKm:       distanceKm(b.BookingDetails),
				IsDisposal:       isDisposal(b.BookingDetails),
				TripDurationDays: duration,
			})
		}
	}
	return signals
}

// Primary returns the signal with the highest estimated cost; the first wins ties
func Primary(signals []BookingSignal) (BookingSignal, bool) {
	if len(signals) == 0 {
		return BookingSignal{}, false
	}
	best := signals[0]
	for _, s := range signals[1:] {
		if s.EstimatedCost.GreaterThan(best.EstimatedCost) {
			best = s
		}
	}
	return best, true
}

// TotalCost sums the estimated cost of all signals
func TotalCost(signals []BookingSignal) decimal.Decimal {
	total := decimal.Zero
	for _, s := range signals {
		total = total.Add(s.EstimatedCost)
	}
	return total
}

func tripDurationDays(trip *entity.TripSegment) *int {
	if trip.DepartureDate == nil || trip.ReturnDate == nil {
		return nil
	}
	days := CalendarDays(*trip.DepartureDate, *trip.ReturnDate)
	return &days
}

// CalendarDays counts date boundaries between from and to, ignoring time of
// day. Both are compared in from's location.
func CalendarDays(from, to time.Time) int {
	loc := from.Location()
	to = to.In(loc)
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)
	return int(math.Round(end.Sub(start).Hours() / 24))
}

func distanceKm(details map[string]interface{}) *decimal.Decimal {
	raw, ok := details[entity.DetailDistanceKm]
	if !ok || raw == nil {
		return nil
	}
	s := strings.TrimSpace(cast.ToString(raw))
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func isDisposal(details map[string]interface{}) bool {
	if raw, ok := details[entity.DetailIsDisposal]; ok {
		if flag, err := cast.ToBoolE(raw); err == nil && flag {
			return true
		}
	}
	transport := strings.TrimSpace(cast.ToString(details[entity.DetailTransportType]))
	return strings.EqualFold(transport, entity.TransportTypeDisposal)
}
