package rewards

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// CouponLifetime is how long a claimed coupon stays redeemable.
const CouponLifetime = 30 * 24 * time.Hour

type Reward struct {
	ID             int
	Title          string
	Description    string
	PointsRequired int64
}

var catalog = []Reward{
	{ID: 1, Title: "Espresso Shot / Syrup", Description: "Extra shot or a dash of syrup", PointsRequired: 25},
	{ID: 2, Title: "Coffee / Tea / Snack", Description: "Hot or iced coffee, tea, bakery or chips", PointsRequired: 100},
	{ID: 3, Title: "Latte / Breakfast", Description: "Latte, cappuccino or oatmeal", PointsRequired: 200},
	{ID: 4, Title: "Frappuccino & Cookie", Description: "Any Frappuccino with a cookie", PointsRequired: 300},
	{ID: 5, Title: "Cuban Combo", Description: "Cuban sandwich, soda, chips & cookie", PointsRequired: 400},
}

func Catalog() []Reward {
	out := make([]Reward, len(catalog))
	copy(out, catalog)
	return out
}

func Find(id int) (Reward, bool) {
	for _, r := range catalog {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}

// IntN returns a value in [0, n).
type IntN func(n int) int

var DefaultIntN IntN = rand.Intn

// NewCouponCode builds RWD-<last 6 digits of unix millis>-<000..999>.
func NewCouponCode(now time.Time, intn IntN) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return fmt.Sprintf("RWD-%s-%03d", ms, intn(1000))
}

// NewOrderNumber builds ORD-<YYYYMMDD>-<1000..9999> using the UTC date.
func NewOrderNumber(now time.Time, intn IntN) string {
	return fmt.Sprintf("ORD-%s-%d", now.UTC().Format("20060102"), 1000+intn(9000))
}

func ExpiresAt(createdAt time.Time) time.Time {
	return createdAt.Add(CouponLifetime)
}
