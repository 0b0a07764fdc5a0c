package main

import (
	"farmland-checkout/internal/cart"

	"github.com/shopspring/decimal"
)

// menu is the kiosk's fixed product list. Prices are before tax.
var menu = []cart.Item{
	{ID: "1", Name: "Farm Breakfast Plate", UnitPrice: decimal.RequireFromString("9.50"), Image: "breakfast.jpg"},
	{ID: "2", Name: "Egg & Cheese Biscuit", UnitPrice: decimal.RequireFromString("4.25"), Image: "biscuit.jpg"},
	{ID: "3", Name: "Seasonal Fruit Cup", UnitPrice: decimal.RequireFromString("3.75"), Image: "fruit.jpg"},
	{ID: "4", Name: "Cold Brew", UnitPrice: decimal.RequireFromString("3.50"), Image: "coldbrew.jpg", Extras: []string{"oat milk"}},
	{ID: "5", Name: "Strawberry Basket", UnitPrice: decimal.RequireFromString("6.00"), Image: "strawberries.jpg"},
	{ID: "6", Name: "Honey Jar", UnitPrice: decimal.RequireFromString("8.00"), Image: "honey.jpg"},
}

func findMenuItem(id string) (cart.Item, bool) {
	for _, item := range menu {
		if item.ID == id {
			return item, true
		}
	}
	return cart.Item{}, false
}
