package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmynk/foodguardian/internal/models"
)

type storeRequest struct {
	StoreID  string            `json:"store_id"`
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	Phone    string            `json:"phone"`
	Location models.Coordinate `json:"location"`
}

type storeResponse struct {
	StoreID string `json:"store_id"`
	Created bool   `json:"created"`
	Updated bool   `json:"updated"`
}

// RegisterStoreProfile publishes the store profile for subjectID on POST /stores.
// A nil coordinate is rejected with KindValidation before any call.
// Repeating the call is safe only as far as the backend upserts.
func (c *Client) RegisterStoreProfile(ctx context.Context, subjectID, name, email, phone string, coord *models.Coordinate) error {
	if coord == nil {
		err := &Error{Kind: KindValidation, Message: "store location is required"}
		c.metrics.observe("register_store", time.Now(), err)
		return err
	}
	if strings.TrimSpace(subjectID) == "" || strings.TrimSpace(name) == "" {
		err := &Error{Kind: KindValidation, Message: "store id and name are required"}
		c.metrics.observe("register_store", time.Now(), err)
		return err
	}

	r, err := jsonRequest("register_store", http.MethodPost, "/stores", storeRequest{
		StoreID:  subjectID,
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		Phone:    strings.TrimSpace(phone),
		Location: *coord,
	})
	if err != nil {
		return err
	}
	r.classify = classifyValidation

	var resp storeResponse
	if err := c.send(ctx, r, &resp); err != nil {
		return err
	}
	c.log.Info("store profile registered", "store_id", subjectID, "created", resp.Created, "updated", resp.Updated)
	return nil
}

type listStoresResponse struct {
	Stores []struct {
		StoreID  string             `json:"store_id"`
		Name     string             `json:"name"`
		Location *models.Coordinate `json:"location"`
	} `json:"stores"`
}

// ListStores returns the public store directory from GET /stores.
// Stores without a location cannot be matched to anyone and are skipped.
func (c *Client) ListStores(ctx context.Context) ([]models.StoreProfile, error) {
	r, _ := jsonRequest("list_stores", http.MethodGet, "/stores", nil)

	var resp listStoresResponse
	if err := c.send(ctx, r, &resp); err != nil {
		return nil, err
	}

	out := make([]models.StoreProfile, 0, len(resp.Stores))
	for _, s := range resp.Stores {
		if s.Location == nil {
			c.log.Warn("skipping store without location", "store_id", s.StoreID)
			continue
		}
		out = append(out, models.StoreProfile{StoreID: s.StoreID, Name: s.Name, Location: *s.Location})
	}
	return out, nil
}
