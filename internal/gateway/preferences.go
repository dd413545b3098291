package gateway

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mmynk/foodguardian/internal/models"
)

type meResponse struct {
	User *struct {
		ID          string             `json:"_id"`
		Email       string             `json:"email"`
		Notify      *bool              `json:"notify"`
		ItemFilters []string           `json:"item_filters"`
		Location    *models.Coordinate `json:"location"`
		RadiusKm    *float64           `json:"radius_km"`
	} `json:"user"`
}

// FetchPreferences loads the signed-in subscriber's preferences from GET /me.
// It fails with KindAuth without a network call when there is no session.
func (c *Client) FetchPreferences(ctx context.Context) (models.PreferenceSet, error) {
	if err := c.requireSession("fetch_preferences"); err != nil {
		return models.PreferenceSet{}, err
	}

	r, _ := jsonRequest("fetch_preferences", http.MethodGet, "/me", nil)

	var resp meResponse
	if err := c.send(ctx, r, &resp); err != nil {
		return models.PreferenceSet{}, err
	}
	if resp.User == nil {
		return models.PreferenceSet{}, &Error{Kind: KindServer, Message: "response missing user", Status: http.StatusOK}
	}

	prefs := models.PreferenceSet{
		Tags:       models.NewTagSet(trimAll(resp.User.ItemFilters)...),
		Coordinate: resp.User.Location,
		RadiusKm:   models.DefaultRadiusKm,
	}
	if resp.User.RadiusKm != nil {
		r := *resp.User.RadiusKm
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return models.PreferenceSet{}, &Error{Kind: KindServer, Message: "invalid radius_km", Status: http.StatusOK}
		}
		prefs.RadiusKm = models.ClampRadius(int(math.Round(r)))
	}
	return prefs, nil
}

type prefsRequest struct {
	ItemFilters []string           `json:"item_filters"`
	Notify      bool               `json:"notify"`
	Location    *models.Coordinate `json:"location,omitempty"`
	RadiusKm    *int               `json:"radius_km,omitempty"`
}

// SavePreferences writes a partial preference update to POST /prefs.
// Nil fields of update are omitted and left unchanged by the backend.
// A radius outside [1, 50] is rejected with KindValidation before any call.
func (c *Client) SavePreferences(ctx context.Context, update models.PreferenceUpdate) error {
	if update.RadiusKm != nil && (*update.RadiusKm < models.MinRadiusKm || *update.RadiusKm > models.MaxRadiusKm) {
		err := &Error{Kind: KindValidation, Message: fmt.Sprintf("radius_km must be between %d and %d", models.MinRadiusKm, models.MaxRadiusKm)}
		c.metrics.observe("save_preferences", time.Now(), err)
		return err
	}
	if err := c.requireSession("save_preferences"); err != nil {
		return err
	}

	filters := trimAll(update.TagIDs)
	if filters == nil {
		filters = []string{}
	}
	r, err := jsonRequest("save_preferences", http.MethodPost, "/prefs", prefsRequest{
		ItemFilters: filters,
		Notify:      update.Notify,
		Location:    update.Coordinate,
		RadiusKm:    update.RadiusKm,
	})
	if err != nil {
		return err
	}
	r.classify = classifyValidation

	return c.send(ctx, r, nil)
}

func trimAll(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
