// Package cart holds the per-user shopping cart value stored on the user row.
package cart

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type Item struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// Cart keeps at most one Item per product. Mutate it only through its methods.
type Cart struct {
	items []Item
}

func New(items ...Item) Cart {
	var c Cart
	for _, it := range items {
		if it.ProductID == uuid.Nil || it.Quantity < 1 {
			continue
		}
		if i := c.index(it.ProductID); i >= 0 {
			c.items[i].Quantity += it.Quantity
			continue
		}
		c.items = append(c.items, it)
	}
	return c
}

func (c *Cart) index(productID uuid.UUID) int {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add increments the product's quantity by one, appending a new line if absent.
func (c *Cart) Add(productID uuid.UUID) {
	if i := c.index(productID); i >= 0 {
		c.items[i].Quantity++
		return
	}
	c.items = append(c.items, Item{ProductID: productID, Quantity: 1})
}

// Remove drops the product's line. Removing an absent product is a no-op.
func (c *Cart) Remove(productID uuid.UUID) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	rest := make([]Item, 0, len(c.items)-1)
	rest = append(rest, c.items[:i]...)
	c.items = append(rest, c.items[i+1:]...)
	return true
}

func (c *Cart) Clear() {
	c.items = nil
}

func (c Cart) Clone() Cart {
	return Cart{items: c.Items()}
}

func (c Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c Cart) Quantity(productID uuid.UUID) int {
	if i := c.index(productID); i >= 0 {
		return c.items[i].Quantity
	}
	return 0
}

func (c Cart) Len() int { return len(c.items) }

func (c Cart) IsEmpty() bool { return len(c.items) == 0 }

func (c Cart) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.items))
	for _, it := range c.items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

type document struct {
	Items []Item `json:"items"`
}

func (c Cart) MarshalJSON() ([]byte, error) {
	items := c.items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(document{Items: items})
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*c = New(doc.Items...)
	return nil
}

func (c Cart) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *Cart) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = Cart{}
		return nil
	case []byte:
		return c.UnmarshalJSON(v)
	case string:
		return c.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cart: unsupported scan type %T", src)
	}
}
