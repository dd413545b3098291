// Package geocode resolves free-text addresses to coordinates using a
// Nominatim-compatible search endpoint.
//
// Resolution is a single request: no caching, no retries. Callers decide
// whether a failure is worth retrying.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmynk/foodguardian/internal/models"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// defaultUserAgent identifies the client, as required by the Nominatim usage policy.
const defaultUserAgent = "foodguardian-client/1.0"

var (
	// ErrEmptyInput is returned for an empty or whitespace-only address.
	ErrEmptyInput = errors.New("address cannot be empty")
	// ErrNotFound is returned when the provider has no match for the address.
	ErrNotFound = errors.New("address not found")
	// ErrProvider is returned for transport failures and bad provider responses.
	ErrProvider = errors.New("geocoding provider error")
)

// Match is one candidate returned by the provider.
type Match struct {
	Coordinate models.Coordinate
	Label      string
}

// Nominatim is a Coordinate Resolver backed by a Nominatim search API.
type Nominatim struct {
	baseURL   string
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

// Option configures a Nominatim resolver.
type Option func(*Nominatim)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Nominatim) { n.client = c }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(n *Nominatim) { n.userAgent = ua }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(n *Nominatim) { n.log = l }
}

// NewNominatim creates a resolver for the given base URL.
func NewNominatim(baseURL string, opts ...Option) *Nominatim {
	n := &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    http.DefaultClient,
		userAgent: defaultUserAgent,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.With("component", "geocode")
	return n
}

// Resolve returns the coordinate of the provider's first match for address.
func (n *Nominatim) Resolve(ctx context.Context, address string) (models.Coordinate, error) {
	m, err := n.Lookup(ctx, address)
	if err != nil {
		return models.Coordinate{}, err
	}
	return m.Coordinate, nil
}

// Lookup is Resolve but also returns the provider's display label.
func (n *Nominatim) Lookup(ctx context.Context, address string) (Match, error) {
	query := strings.TrimSpace(address)
	if query == "" {
		return Match{}, ErrEmptyInput
	}

	candidates, err := n.search(ctx, query)
	if err != nil {
		n.log.Warn("geocoding failed", "address", query, "error", err)
		return Match{}, err
	}
	if len(candidates) == 0 {
		return Match{}, fmt.Errorf("%w: could not find coordinates for %q", ErrNotFound, query)
	}

	// The provider's order is authoritative; the first candidate wins.
	first := candidates[0]
	m, err := first.match()
	if err != nil {
		return Match{}, err
	}
	n.log.Debug("address resolved", "address", query, "label", m.Label, "coordinate", m.Coordinate.String())
	return m, nil
}

// candidate mirrors one element of the Nominatim JSON response.
// Latitude and longitude arrive as text.
type candidate struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c candidate) match() (Match, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(c.Lat), 64)
	if err != nil {
		return Match{}, fmt.Errorf("%w: invalid latitude %q", ErrProvider, c.Lat)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(c.Lon), 64)
	if err != nil {
		return Match{}, fmt.Errorf("%w: invalid longitude %q", ErrProvider, c.Lon)
	}
	coord, err := models.NewCoordinate(lat, lng)
	if err != nil {
		return Match{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return Match{Coordinate: coord, Label: c.DisplayName}, nil
}

func (n *Nominatim) search(ctx context.Context, query string) ([]candidate, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: unexpected status %d", ErrProvider, resp.StatusCode)
	}

	var candidates []candidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrProvider, err)
	}
	return candidates, nil
}
