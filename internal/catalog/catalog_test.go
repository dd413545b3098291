package catalog

import (
	"context"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	tags, err := c.Tags(context.Background())
	if err != nil {
		t.Fatalf("Tags failed: %v", err)
	}
	if len(tags) != 18 {
		t.Errorf("expected 18 tags, got %d", len(tags))
	}

	seen := make(map[string]bool)
	for _, tag := range tags {
		if seen[tag.ID] {
			t.Errorf("duplicate tag id %q", tag.ID)
		}
		seen[tag.ID] = true
	}

	// Mutating the returned slice must not leak into the catalog.
	tags[0].DisplayName = "changed"
	again, _ := c.Tags(context.Background())
	if again[0].DisplayName != "Apple" {
		t.Errorf("catalog was mutated through returned slice: %q", again[0].DisplayName)
	}

	if got := c.DisplayName("bell_pepper"); got != "Bell Pepper" {
		t.Errorf("DisplayName(bell_pepper) = %q", got)
	}
	if got := c.DisplayName("durian"); got != "durian" {
		t.Errorf("DisplayName(durian) = %q", got)
	}
}

func TestTagsHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Default().Tags(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}
