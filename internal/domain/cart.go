package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Cart maps a menu item id to a positive quantity. A quantity of zero is
// represented by key absence, never by a stored zero.
type Cart map[string]int

func (c Cart) Value() (driver.Value, error) {
	if c == nil {
		c = Cart{}
	}
	return json.Marshal(c)
}

func (c *Cart) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*c = Cart{}
		return nil
	default:
		return fmt.Errorf("domain: cannot scan %T into Cart", value)
	}
	if len(data) == 0 {
		*c = Cart{}
		return nil
	}
	return json.Unmarshal(data, c)
}

// Quantity treats a missing key as zero.
func (c Cart) Quantity(itemID string) int {
	if c == nil {
		return 0
	}
	return c[itemID]
}

// Apply returns a copy of the cart with the signed delta applied to itemID.
// The new quantity is clamped at zero, and a zero quantity removes the key.
// The receiver is never mutated.
func (c Cart) Apply(itemID string, delta int) Cart {
	next := c.Clone()
	qty := next[itemID] + delta
	if qty <= 0 {
		delete(next, itemID)
	} else {
		next[itemID] = qty
	}
	return next
}

// Clone returns an independent copy. A nil cart clones to an empty one.
func (c Cart) Clone() Cart {
	next := make(Cart, len(c))
	for id, qty := range c {
		if qty > 0 {
			next[id] = qty
		}
	}
	return next
}

// CartTotals is the aggregate view of a cart joined against a menu.
type CartTotals struct {
	ItemCount  int     `json:"itemCount"`
	PriceTotal float64 `json:"priceTotal"`
}

// Totals folds the menu item list against the cart. Item ids present in the
// cart but absent from the list contribute nothing: carts may briefly
// reference items from a stale room snapshot, and unknown ids are ignored
// rather than guessed at.
func (c Cart) Totals(items []MenuItem) CartTotals {
	var t CartTotals
	for _, item := range items {
		qty := c.Quantity(item.ID)
		if qty == 0 {
			continue
		}
		t.ItemCount += qty
		t.PriceTotal += item.Price * float64(qty)
	}
	return t
}
