package model

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

func (s PaymentStatus) String() string {
	return string(s)
}

type CouponStatus string

const (
	CouponStatusActive  CouponStatus = "active"
	CouponStatusUsed    CouponStatus = "used"
	CouponStatusExpired CouponStatus = "expired"
)

// CouponFilter selects coupon history rows.
type CouponFilter string

const (
	CouponFilterAll     CouponFilter = "all"
	CouponFilterActive  CouponFilter = "active"
	CouponFilterUsed    CouponFilter = "used"
	CouponFilterExpired CouponFilter = "expired"
)

func ParseCouponFilter(s string) (CouponFilter, bool) {
	switch f := CouponFilter(s); f {
	case CouponFilterAll, CouponFilterActive, CouponFilterUsed, CouponFilterExpired:
		return f, true
	case "":
		return CouponFilterAll, true
	}
	return "", false
}
