package models

import (
	"fmt"
	"time"
)

// ItemKind classifies how a shop item behaves when bought.
type ItemKind string

const (
	// ItemKindDurable items land in the inventory and can be owned once.
	ItemKindDurable ItemKind = "durable"
	// ItemKindConsumable items pay out immediately and are never stored.
	ItemKindConsumable ItemKind = "consumable"
	// ItemKindTimed items grant a window on the account instead of an
	// inventory entry.
	ItemKindTimed ItemKind = "timed"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemKindDurable, ItemKindConsumable, ItemKindTimed:
		return true
	}
	return false
}

// Item is one purchasable catalog entry.
type Item struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Price       int64    `yaml:"price" json:"price"`
	Kind        ItemKind `yaml:"kind" json:"kind"`

	// PayoutMin/PayoutMax bound the instant payout of consumable items.
	PayoutMin int64 `yaml:"payout_min,omitempty" json:"payout_min,omitempty"`
	PayoutMax int64 `yaml:"payout_max,omitempty" json:"payout_max,omitempty"`

	// DurationHours is the window length granted by timed items.
	DurationHours int `yaml:"duration_hours,omitempty" json:"duration_hours,omitempty"`
}

// Duration returns the window length of a timed item.
func (i Item) Duration() time.Duration {
	return time.Duration(i.DurationHours) * time.Hour
}

// Catalog holds the shop items and the work job list.
type Catalog struct {
	Items []Item   `yaml:"items"`
	Jobs  []string `yaml:"jobs"`

	byID map[string]Item
}

// Item looks up a catalog entry by id.
func (c *Catalog) Item(id string) (Item, bool) {
	if c.byID == nil {
		c.index()
	}
	item, ok := c.byID[id]
	return item, ok
}

// Validate checks the catalog for shape errors and builds the id index.
func (c *Catalog) Validate() error {
	if len(c.Items) == 0 {
		return fmt.Errorf("catalog has no items")
	}
	if len(c.Jobs) == 0 {
		return fmt.Errorf("catalog has no jobs")
	}
	c.byID = make(map[string]Item, len(c.Items))
	for _, item := range c.Items {
		if item.ID == "" || item.Name == "" {
			return fmt.Errorf("catalog item missing id or name: %+v", item)
		}
		if item.Price <= 0 {
			return fmt.Errorf("catalog item %q has non-positive price %d", item.ID, item.Price)
		}
		if !item.Kind.Valid() {
			return fmt.Errorf("catalog item %q has unknown kind %q", item.ID, item.Kind)
		}
		if item.Kind == ItemKindConsumable && (item.PayoutMin <= 0 || item.PayoutMax < item.PayoutMin) {
			return fmt.Errorf("catalog item %q has invalid payout range [%d,%d]", item.ID, item.PayoutMin, item.PayoutMax)
		}
		if item.Kind == ItemKindTimed && item.DurationHours <= 0 {
			return fmt.Errorf("catalog item %q has no duration", item.ID)
		}
		if _, dup := c.byID[item.ID]; dup {
			return fmt.Errorf("catalog item %q defined twice", item.ID)
		}
		c.byID[item.ID] = item
	}
	return nil
}

func (c *Catalog) index() {
	c.byID = make(map[string]Item, len(c.Items))
	for _, item := range c.Items {
		c.byID[item.ID] = item
	}
}
