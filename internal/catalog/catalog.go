// Package catalog provides the fixed list of food tags subscribers can follow.
//
// The ids match the classes of the detection model, so a tag id selected by
// a subscriber is directly comparable to an item label detected in a store
// upload.
package catalog

import (
	"context"

	"github.com/mmynk/foodguardian/internal/models"
)

var defaultTags = []models.Tag{
	// Fruits
	{ID: "apple", DisplayName: "Apple"},
	{ID: "banana", DisplayName: "Banana"},
	{ID: "orange", DisplayName: "Orange"},
	{ID: "grape", DisplayName: "Grape"},
	{ID: "strawberry", DisplayName: "Strawberry"},
	// Vegetables
	{ID: "tomato", DisplayName: "Tomato"},
	{ID: "potato", DisplayName: "Potato"},
	{ID: "bell_pepper", DisplayName: "Bell Pepper"},
	{ID: "cucumber", DisplayName: "Cucumber"},
	{ID: "carrot", DisplayName: "Carrot"},
	{ID: "broccoli", DisplayName: "Broccoli"},
	// Baked goods
	{ID: "bread", DisplayName: "Bread"},
	{ID: "cake", DisplayName: "Cake"},
	{ID: "pastry", DisplayName: "Pastry"},
	{ID: "croissant", DisplayName: "Croissant"},
	{ID: "doughnut", DisplayName: "Doughnut"},
	{ID: "muffin", DisplayName: "Muffin"},
	{ID: "cookie", DisplayName: "Cookie"},
}

// Static serves an immutable tag list.
type Static struct {
	tags []models.Tag
	byID map[string]models.Tag
}

// Default returns the catalog of food tags known to the detector.
func Default() *Static {
	return NewStatic(defaultTags)
}

// NewStatic creates a catalog over a copy of tags.
func NewStatic(tags []models.Tag) *Static {
	c := &Static{
		tags: make([]models.Tag, len(tags)),
		byID: make(map[string]models.Tag, len(tags)),
	}
	copy(c.tags, tags)
	for _, t := range tags {
		c.byID[t.ID] = t
	}
	return c
}

// Tags returns the catalog in display order.
// The context is accepted so remote catalogs can share the signature.
func (c *Static) Tags(ctx context.Context) ([]models.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Tag, len(c.tags))
	copy(out, c.tags)
	return out, nil
}

// Lookup returns the tag with the given id.
func (c *Static) Lookup(id string) (models.Tag, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// DisplayName returns the tag's label, or the id itself for unknown tags.
func (c *Static) DisplayName(id string) string {
	if t, ok := c.byID[id]; ok {
		return t.DisplayName
	}
	return id
}
