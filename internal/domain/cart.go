package domain

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

type Cart struct {
	ID        string
	Owner     Identity
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// NewCart returns an empty, unsaved cart for owner.
func NewCart(owner Identity) *Cart {
	return &Cart{
		Owner: owner,
		Items: []CartItem{},
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItem returns the index of the item for productID, or -1.
func (c *Cart) FindItem(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem adds quantity to an existing line, refreshing its AddedAt, or appends a new line.
// The cart is left untouched when the summed quantity would overflow.
func (c *Cart) AddItem(productID string, quantity int, now time.Time) error {
	if idx := c.FindItem(productID); idx >= 0 {
		if !canSum(c.Items[idx].Quantity, quantity) {
			return errQuantityTooLarge()
		}
		c.Items[idx].Quantity += quantity
		c.Items[idx].AddedAt = now
		return nil
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity, AddedAt: now})
	return nil
}

// Absorb folds an item coming from another cart into c. Existing lines keep their AddedAt.
func (c *Cart) Absorb(item CartItem, now time.Time) error {
	if idx := c.FindItem(item.ProductID); idx >= 0 {
		if !canSum(c.Items[idx].Quantity, item.Quantity) {
			return errQuantityTooLarge()
		}
		c.Items[idx].Quantity += item.Quantity
		return nil
	}
	c.Items = append(c.Items, CartItem{ProductID: item.ProductID, Quantity: item.Quantity, AddedAt: now})
	return nil
}

func canSum(existing, quantity int) bool {
	return existing <= math.MaxInt-quantity
}

func errQuantityTooLarge() *ValidationError {
	return NewValidationError("quantity", "quantity is too large")
}

// SetQuantity reports false when the cart has no line for productID.
func (c *Cart) SetQuantity(productID string, quantity int) bool {
	idx := c.FindItem(productID)
	if idx < 0 {
		return false
	}
	c.Items[idx].Quantity = quantity
	return true
}

// RemoveItem reports whether a line was removed.
func (c *Cart) RemoveItem(productID string) bool {
	idx := c.FindItem(productID)
	if idx < 0 {
		return false
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return true
}

// ReplaceItems swaps the whole item list. Repeated product ids collapse into the first
// occurrence with their quantities summed. On error the cart keeps its previous items.
func (c *Cart) ReplaceItems(items []CartItem, now time.Time) error {
	replaced := NewCart(c.Owner)
	for _, item := range items {
		if err := replaced.Absorb(item, now); err != nil {
			return err
		}
	}
	c.Items = replaced.Items
	return nil
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

func (c *Cart) Clone() *Cart {
	clone := *c
	clone.Items = make([]CartItem, len(c.Items))
	copy(clone.Items, c.Items)
	return &clone
}

type cartJSON struct {
	ID        string     `json:"id,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	GuestID   string     `json:"guestId,omitempty"`
	Items     []CartItem `json:"items"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

var errCartOwner = errors.New("cart must have exactly one of userId or guestId")

func (c Cart) MarshalJSON() ([]byte, error) {
	out := cartJSON{ID: c.ID, Items: c.Items}
	if out.Items == nil {
		out.Items = []CartItem{}
	}
	switch c.Owner.Kind() {
	case KindUser:
		out.UserID = c.Owner.ID()
	case KindGuest:
		out.GuestID = c.Owner.ID()
	}
	if !c.CreatedAt.IsZero() {
		out.CreatedAt = &c.CreatedAt
	}
	if !c.UpdatedAt.IsZero() {
		out.UpdatedAt = &c.UpdatedAt
	}
	return json.Marshal(out)
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var in cartJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch {
	case in.UserID != "" && in.GuestID == "":
		c.Owner = User(in.UserID)
	case in.GuestID != "" && in.UserID == "":
		c.Owner = Guest(in.GuestID)
	default:
		return errCartOwner
	}
	c.ID = in.ID
	c.Items = in.Items
	if c.Items == nil {
		c.Items = []CartItem{}
	}
	c.CreatedAt, c.UpdatedAt = time.Time{}, time.Time{}
	if in.CreatedAt != nil {
		c.CreatedAt = *in.CreatedAt
	}
	if in.UpdatedAt != nil {
		c.UpdatedAt = *in.UpdatedAt
	}
	return nil
}

// MergeResult is returned by a guest-to-user merge. Cart is nil when there was nothing to merge.
type MergeResult struct {
	Message string `json:"message"`
	Cart    *Cart  `json:"cart,omitempty"`
}

func (r MergeResult) Merged() bool {
	return r.Cart != nil
}
