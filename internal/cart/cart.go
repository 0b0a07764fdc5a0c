// Package cart holds the shopper's in-memory cart for one session.
package cart

import (
	"slices"
	"sync"

	"farmland-checkout/internal/dto"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int32
	Image     string
	Extras    []string
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// Store is safe for concurrent use. Items are unique by ID and kept in the
// order they were first added.
type Store struct {
	mu      sync.Mutex
	items   []Item
	taxRate decimal.Decimal
}

func NewStore(taxRate decimal.Decimal) *Store {
	return &Store{taxRate: taxRate}
}

// Add merges item into the cart, summing quantities for a known ID.
func (s *Store) Add(item Item) {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(item.ID); i >= 0 {
		s.items[i].Quantity += item.Quantity
		return
	}
	item.Extras = slices.Clone(item.Extras)
	s.items = append(s.items, item)
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		s.items = slices.Delete(s.items, i, i+1)
	}
}

// UpdateQuantity sets the quantity of id; zero or less removes the line.
func (s *Store) UpdateQuantity(id string, quantity int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		s.items = slices.Delete(s.items, i, i+1)
		return
	}
	s.items[i].Quantity = quantity
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	for i, item := range s.items {
		item.Extras = slices.Clone(item.Extras)
		out[i] = item
	}
	return out
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.items {
		n += int(item.Quantity)
	}
	return n
}

func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subtotal()
}

func (s *Store) subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range s.items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// Tax is the subtotal times the tax rate, rounded to cents.
func (s *Store) Tax() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subtotal().Mul(s.taxRate).Round(2)
}

// Total is what the shopper pays: subtotal plus tax, in cents.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subtotal()
	return sub.Add(sub.Mul(s.taxRate).Round(2)).Round(2)
}

// Snapshot returns the {id, quantity} lines sent with a checkout.
func (s *Store) Snapshot() []*dto.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*dto.CartItem, len(s.items))
	for i, item := range s.items {
		out[i] = &dto.CartItem{ID: dto.ProductID(item.ID), Quantity: item.Quantity}
	}
	return out
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.items, func(item Item) bool { return item.ID == id })
}
