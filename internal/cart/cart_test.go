package cart

import (
	"sync"
	"testing"

	"farmland-checkout/internal/dto"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newStore() *Store {
	return NewStore(decimal.RequireFromString("0.06"))
}

func TestStore_TotalsWithTax(t *testing.T) {
	s := newStore()
	s.Add(Item{ID: "5", Name: "Cuban Sandwich", UnitPrice: decimal.RequireFromString("6.00"), Quantity: 2})

	assert.Equal(t, "12.00", s.Subtotal().StringFixed(2))
	assert.Equal(t, "0.72", s.Tax().StringFixed(2))
	assert.Equal(t, "12.72", s.Total().StringFixed(2))
	assert.Equal(t, []*dto.CartItem{{ID: "5", Quantity: 2}}, s.Snapshot())
}

func TestStore_MergeAndUpdate(t *testing.T) {
	s := newStore()
	s.Add(Item{ID: "1", UnitPrice: decimal.RequireFromString("3.25"), Quantity: 1})
	s.Add(Item{ID: "2", UnitPrice: decimal.RequireFromString("1.10")})
	s.Add(Item{ID: "1", UnitPrice: decimal.RequireFromString("3.25"), Quantity: 2})

	items := s.Items()
	assert.Len(t, items, 2)
	assert.Equal(t, int32(3), items[0].Quantity)
	assert.Equal(t, int32(1), items[1].Quantity, "zero quantity adds one")
	assert.Equal(t, 4, s.TotalItems())

	s.UpdateQuantity("1", 0)
	assert.Len(t, s.Items(), 1)

	s.UpdateQuantity("2", 5)
	assert.Equal(t, "5.50", s.Subtotal().StringFixed(2))

	s.Remove("2")
	assert.Zero(t, s.TotalItems())
}

func TestStore_Clear(t *testing.T) {
	s := newStore()
	s.Add(Item{ID: "1", UnitPrice: decimal.NewFromInt(1), Quantity: 1})
	s.Clear()

	assert.Empty(t, s.Items())
	assert.True(t, s.Total().IsZero())
}

func TestStore_ConcurrentAdds(t *testing.T) {
	s := newStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(Item{ID: "1", UnitPrice: decimal.NewFromInt(1), Quantity: 1})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.TotalItems())
}
