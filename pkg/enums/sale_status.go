package enums

import "time"

// SaleStatus describes where a product sits relative to its sale window.
type SaleStatus string

const (
	SaleStatusUpcoming SaleStatus = "UPCOMING"
	SaleStatusLive     SaleStatus = "LIVE"
	SaleStatusExpired  SaleStatus = "EXPIRED"
)

// SaleStatusAt classifies the window [startsAt, endsAt] against now.
func SaleStatusAt(startsAt, endsAt, now time.Time) SaleStatus {
	switch {
	case !startsAt.After(now) && !endsAt.Before(now):
		return SaleStatusLive
	case endsAt.Before(now):
		return SaleStatusExpired
	default:
		return SaleStatusUpcoming
	}
}
