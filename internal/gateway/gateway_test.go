package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/foodguardian/internal/models"
	"github.com/mmynk/foodguardian/internal/session"
)

// recorded is one request seen by the fake backend.
type recorded struct {
	method string
	path   string
	auth   string
	body   []byte
	ctype  string
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recorded
	handlers map[string]http.HandlerFunc
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		method: r.Method,
		path:   r.URL.Path,
		auth:   r.Header.Get("Authorization"),
		body:   body,
		ctype:  r.Header.Get("Content-Type"),
	})
	h, ok := f.handlers[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	h(w, r)
}

func (f *fakeBackend) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("expected at least one request")
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func respondJSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

// setupGateway creates a fake backend and a gateway client with a fresh user session store.
func setupGateway(t *testing.T, handlers map[string]http.HandlerFunc, opts ...Option) (*Client, *session.Store, *fakeBackend) {
	t.Helper()

	backend := &fakeBackend{handlers: handlers}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	store, err := session.Open(context.Background(), models.RoleUser, session.NewMemoryKV(), nil)
	if err != nil {
		t.Fatalf("failed to open session store: %v", err)
	}

	return New(server.URL, store, opts...), store, backend
}

func TestLoginReturnsCredentialsWithoutBearer(t *testing.T) {
	client, store, backend := setupGateway(t, map[string]http.HandlerFunc{
		"POST /auth/login": respondJSON(http.StatusOK, `{"token":"tok-123","user_id":"u-1"}`),
	})
	// A stale session must not be sent along with credentials.
	store.Set(context.Background(), "stale", "old")

	creds, err := client.Login(context.Background(), " sam@example.com ", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if creds.Token != "tok-123" || creds.SubjectID != "u-1" {
		t.Errorf("unexpected credentials: %+v", creds)
	}

	req := backend.last(t)
	if req.auth != "" {
		t.Errorf("login carried Authorization header %q", req.auth)
	}
	var body map[string]string
	json.Unmarshal(req.body, &body)
	if body["email"] != "sam@example.com" || body["password"] != "secret1" {
		t.Errorf("unexpected login body: %s", req.body)
	}
}

func TestCredentialFailuresAreAuthErrors(t *testing.T) {
	client, store, _ := setupGateway(t, map[string]http.HandlerFunc{
		"POST /auth/login":  respondJSON(http.StatusUnauthorized, `{"error":"Invalid credentials"}`),
		"POST /auth/signup": respondJSON(http.StatusConflict, `{"error":"Email already in use"}`),
	})
	store.Set(context.Background(), "still-valid", "u-1")

	_, err := client.Login(context.Background(), "sam@example.com", "wrong")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Message != "Invalid credentials" || gerr.Status != http.StatusUnauthorized {
		t.Errorf("unexpected error details: %+v", gerr)
	}

	_, err = client.Signup(context.Background(), "sam@example.com", "secret1")
	if KindOf(err) != KindAuth {
		t.Errorf("expected auth kind for duplicate email, got %v", err)
	}

	if _, ok := store.Token(); !ok {
		t.Error("a credential failure must not clear the existing session")
	}
}

func TestTokenIsReadPerRequest(t *testing.T) {
	client, store, backend := setupGateway(t, map[string]http.HandlerFunc{
		"GET /stores": respondJSON(http.StatusOK, `{"stores":[]}`),
	})
	ctx := context.Background()

	store.Set(ctx, "tok-a", "u-1")
	if _, err := client.ListStores(ctx); err != nil {
		t.Fatalf("ListStores failed: %v", err)
	}
	if got := backend.last(t).auth; got != "Bearer tok-a" {
		t.Errorf("Authorization = %q, want Bearer tok-a", got)
	}

	store.Clear(ctx)
	if _, err := client.ListStores(ctx); err != nil {
		t.Fatalf("ListStores failed: %v", err)
	}
	if got := backend.last(t).auth; got != "" {
		t.Errorf("expected unauthenticated request after Clear, got %q", got)
	}
}

func TestRejectedSessionIsCleared(t *testing.T) {
	var expired atomic.Int32
	client, store, _ := setupGateway(t, map[string]http.HandlerFunc{
		"GET /me": respondJSON(http.StatusUnauthorized, `{"error":"Invalid or expired token"}`),
	}, OnSessionExpired(func() { expired.Add(1) }))
	store.Set(context.Background(), "expired-token", "u-1")

	_, err := client.FetchPreferences(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if _, ok := store.Token(); ok {
		t.Error("expected session to be cleared")
	}
	if expired.Load() != 1 {
		t.Errorf("expected expiry callback once, got %d", expired.Load())
	}
}

func TestLateRejectionKeepsNewerSession(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	var expired atomic.Int32
	client, store, _ := setupGateway(t, map[string]http.HandlerFunc{
		"GET /me": func(w http.ResponseWriter, r *http.Request) {
			close(arrived)
			<-release
			respondJSON(http.StatusUnauthorized, `{"error":"Invalid or expired token"}`)(w, r)
		},
	}, OnSessionExpired(func() { expired.Add(1) }))
	ctx := context.Background()
	store.Set(ctx, "old-token", "u-1")

	errc := make(chan error, 1)
	go func() {
		_, err := client.FetchPreferences(ctx)
		errc <- err
	}()

	<-arrived
	if err := store.Set(ctx, "fresh-token", "u-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	close(release)

	if err := <-errc; !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if token, ok := store.Token(); !ok || token != "fresh-token" {
		t.Errorf("after late 401: token=%q present=%v, want fresh-token", token, ok)
	}
	if expired.Load() != 0 {
		t.Errorf("expiry callback fired %d times for a replaced token", expired.Load())
	}
}

func TestFetchPreferences(t *testing.T) {
	t.Run("requires session without network", func(t *testing.T) {
		client, _, backend := setupGateway(t, nil)
		_, err := client.FetchPreferences(context.Background())
		if !errors.Is(err, ErrAuth) {
			t.Errorf("expected ErrAuth, got %v", err)
		}
		if backend.count() != 0 {
			t.Errorf("expected no requests, got %d", backend.count())
		}
	})

	t.Run("decodes profile", func(t *testing.T) {
		client, store, backend := setupGateway(t, map[string]http.HandlerFunc{
			"GET /me": respondJSON(http.StatusOK, `{"user":{"_id":"u-1","email":"sam@example.com",
				"item_filters":["apple","bread"],"location":null,"radius_km":5,"notify":true}}`),
		})
		store.Set(context.Background(), "tok", "u-1")

		prefs, err := client.FetchPreferences(context.Background())
		if err != nil {
			t.Fatalf("FetchPreferences failed: %v", err)
		}
		if !prefs.Tags.Equal(models.NewTagSet("apple", "bread")) {
			t.Errorf("tags = %v", prefs.Tags.Sorted())
		}
		if prefs.Coordinate != nil || prefs.RadiusKm != 5 {
			t.Errorf("unexpected prefs: %+v", prefs)
		}
		if got := backend.last(t).auth; got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
	})

	t.Run("normalizes radius and location", func(t *testing.T) {
		client, store, _ := setupGateway(t, map[string]http.HandlerFunc{
			"GET /me": respondJSON(http.StatusOK, `{"user":{"item_filters":null,
				"location":{"lat":40.7,"lng":-74.0},"radius_km":75.4}}`),
		})
		store.Set(context.Background(), "tok", "u-1")

		prefs, err := client.FetchPreferences(context.Background())
		if err != nil {
			t.Fatalf("FetchPreferences failed: %v", err)
		}
		if prefs.RadiusKm != models.MaxRadiusKm {
			t.Errorf("radius = %d, want clamped %d", prefs.RadiusKm, models.MaxRadiusKm)
		}
		if prefs.Coordinate == nil || prefs.Coordinate.Lat() != 40.7 {
			t.Errorf("coordinate = %v", prefs.Coordinate)
		}
		if prefs.Tags.Len() != 0 {
			t.Errorf("expected no tags, got %v", prefs.Tags.Sorted())
		}
	})

	t.Run("rejects malformed location", func(t *testing.T) {
		client, store, _ := setupGateway(t, map[string]http.HandlerFunc{
			"GET /me": respondJSON(http.StatusOK, `{"user":{"location":{"lat":123}}}`),
		})
		store.Set(context.Background(), "tok", "u-1")

		_, err := client.FetchPreferences(context.Background())
		if !errors.Is(err, ErrServer) {
			t.Errorf("expected ErrServer, got %v", err)
		}
	})
}

func TestSavePreferencesBody(t *testing.T) {
	client, store, backend := setupGateway(t, map[string]http.HandlerFunc{
		"POST /prefs": respondJSON(http.StatusOK, `{"ok":true}`),
	})
	store.Set(context.Background(), "tok", "u-1")

	radius := 10
	err := client.SavePreferences(context.Background(), models.PreferenceUpdate{
		TagIDs:   []string{"apple"},
		Notify:   true,
		RadiusKm: &radius,
	})
	if err != nil {
		t.Fatalf("SavePreferences failed: %v", err)
	}

	req := backend.last(t)
	if req.ctype != "application/json" {
		t.Errorf("Content-Type = %q", req.ctype)
	}
	if string(req.body) != `{"item_filters":["apple"],"notify":true,"radius_km":10}` {
		t.Errorf("unexpected body: %s", req.body)
	}

	t.Run("empty filters encode as list", func(t *testing.T) {
		loc, _ := models.NewCoordinate(51.5, -0.15)
		if err := client.SavePreferences(context.Background(), models.PreferenceUpdate{Notify: true, Coordinate: &loc}); err != nil {
			t.Fatalf("SavePreferences failed: %v", err)
		}
		if got := string(backend.last(t).body); got != `{"item_filters":[],"notify":true,"location":{"lat":51.5,"lng":-0.15}}` {
			t.Errorf("unexpected body: %s", got)
		}
	})
}

func TestSavePreferencesValidation(t *testing.T) {
	client, store, backend := setupGateway(t, map[string]http.HandlerFunc{
		"POST /prefs": respondJSON(http.StatusBadRequest, `{"error":"radius_km must be between 0 and 100"}`),
	})
	store.Set(context.Background(), "tok", "u-1")

	for _, radius := range []int{0, 51, -3} {
		r := radius
		err := client.SavePreferences(context.Background(), models.PreferenceUpdate{RadiusKm: &r})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("radius %d: expected ErrValidation, got %v", radius, err)
		}
	}
	if backend.count() != 0 {
		t.Errorf("out-of-range radius reached the network %d times", backend.count())
	}

	ok := 20
	err := client.SavePreferences(context.Background(), models.PreferenceUpdate{RadiusKm: &ok})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected server-side ErrValidation, got %v", err)
	}
	if _, signedIn := store.Token(); !signedIn {
		t.Error("a validation failure must not clear the session")
	}
}

func TestRegisterStoreProfile(t *testing.T) {
	client, store, backend := setupGateway(t, map[string]http.HandlerFunc{
		"POST /stores": respondJSON(http.StatusOK, `{"ok":true,"store_id":"s-1","created":true}`),
	})
	store.Set(context.Background(), "tok", "s-1")

	t.Run("missing coordinate", func(t *testing.T) {
		err := client.RegisterStoreProfile(context.Background(), "s-1", "Bakery", "b@example.com", "555", nil)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
		if backend.count() != 0 {
			t.Errorf("expected no requests, got %d", backend.count())
		}
	})

	t.Run("location is sent exactly", func(t *testing.T) {
		loc, _ := models.NewCoordinate(51.5, -0.15)
		err := client.RegisterStoreProfile(context.Background(), "s-1", "Bakery", "b@example.com", "555", &loc)
		if err != nil {
			t.Fatalf("RegisterStoreProfile failed: %v", err)
		}

		var body struct {
			StoreID  string          `json:"store_id"`
			Name     string          `json:"name"`
			Location json.RawMessage `json:"location"`
		}
		if err := json.Unmarshal(backend.last(t).body, &body); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if body.StoreID != "s-1" || body.Name != "Bakery" {
			t.Errorf("unexpected body: %+v", body)
		}
		if string(body.Location) != `{"lat":51.5,"lng":-0.15}` {
			t.Errorf("location = %s", body.Location)
		}
	})
}

func TestListStoresSkipsStoresWithoutLocation(t *testing.T) {
	client, _, _ := setupGateway(t, map[string]http.HandlerFunc{
		"GET /stores": respondJSON(http.StatusOK, `{"stores":[
			{"store_id":"s-1","name":"Bakery","location":{"lat":51.5,"lng":-0.15}},
			{"store_id":"s-2","name":"Deli","location":null},
			{"store_id":"s-3","name":"Grocer"}
		]}`),
	})

	stores, err := client.ListStores(context.Background())
	if err != nil {
		t.Fatalf("ListStores failed: %v", err)
	}
	if len(stores) != 1 || stores[0].StoreID != "s-1" {
		t.Fatalf("stores = %+v, want only s-1", stores)
	}
	if stores[0].Location.Lat() != 51.5 || stores[0].Location.Lng() != -0.15 {
		t.Errorf("location = %s", stores[0].Location)
	}
}

func TestUploadImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n" + "rest-of-image")

	t.Run("multipart field and detector objects", func(t *testing.T) {
		var (
			mu                        sync.Mutex
			field, filename, partType string
		)
		client, store, _ := setupGateway(t, map[string]http.HandlerFunc{
			"POST /upload-test": func(w http.ResponseWriter, r *http.Request) {
				file, header, err := r.FormFile("image")
				if err != nil {
					http.Error(w, `{"error":"image required"}`, http.StatusBadRequest)
					return
				}
				file.Close()
				mu.Lock()
				field, filename, partType = "image", header.Filename, header.Header.Get("Content-Type")
				mu.Unlock()
				respondJSON(http.StatusOK, `{"items":[{"label":"bread","confidence":0.998},{"label":"cake","confidence":0.87}],
					"source":"stub","timestamp":"2026-10-19T10:00:00Z"}`)(w, r)
			},
		})
		store.Set(context.Background(), "tok", "s-1")

		record, err := client.UploadImage(context.Background(), "/tmp/shelf.png", "", png)
		if err != nil {
			t.Fatalf("UploadImage failed: %v", err)
		}
		mu.Lock()
		if field != "image" || filename != "shelf.png" || partType != "image/png" {
			t.Errorf("unexpected part: field=%q filename=%q type=%q", field, filename, partType)
		}
		mu.Unlock()
		if len(record.DetectedItems) != 2 || record.DetectedItems[0] != "bread" || record.DetectedItems[1] != "cake" {
			t.Errorf("items = %v", record.DetectedItems)
		}
		if record.ID == "" || record.Timestamp.Year() != 2026 {
			t.Errorf("unexpected record: %+v", record)
		}
		if record.Processing() {
			t.Error("record with items must not be processing")
		}
	})

	t.Run("empty items means processing", func(t *testing.T) {
		client, _, _ := setupGateway(t, map[string]http.HandlerFunc{
			"POST /upload-test": respondJSON(http.StatusOK, `{"items":[],"id":"up-1","timestamp":1760868000}`),
		})
		record, err := client.UploadImage(context.Background(), "shelf.png", "image/png", png)
		if err != nil {
			t.Fatalf("UploadImage failed: %v", err)
		}
		if !record.Processing() || record.ID != "up-1" {
			t.Errorf("unexpected record: %+v", record)
		}
	})

	t.Run("declared type labels the part", func(t *testing.T) {
		var (
			mu       sync.Mutex
			partType string
		)
		client, _, _ := setupGateway(t, map[string]http.HandlerFunc{
			"POST /upload-test": func(w http.ResponseWriter, r *http.Request) {
				file, header, err := r.FormFile("image")
				if err != nil {
					http.Error(w, `{"error":"image required"}`, http.StatusBadRequest)
					return
				}
				file.Close()
				mu.Lock()
				partType = header.Header.Get("Content-Type")
				mu.Unlock()
				respondJSON(http.StatusOK, `{"items":["bread"]}`)(w, r)
			},
		})
		if _, err := client.UploadImage(context.Background(), "shelf.heic", "image/heic", []byte("heic payload")); err != nil {
			t.Fatalf("UploadImage failed: %v", err)
		}
		mu.Lock()
		defer mu.Unlock()
		if partType != "image/heic" {
			t.Errorf("part Content-Type = %q, want image/heic", partType)
		}
	})

	t.Run("rejection is an upload error", func(t *testing.T) {
		client, _, _ := setupGateway(t, map[string]http.HandlerFunc{
			"POST /upload-test": respondJSON(http.StatusUnsupportedMediaType, `{"error":"unsupported image format"}`),
		})
		_, err := client.UploadImage(context.Background(), "notes.txt", "", []byte("plain text"))
		if !errors.Is(err, ErrUpload) {
			t.Errorf("expected ErrUpload, got %v", err)
		}
	})
}

func TestTransportFailure(t *testing.T) {
	_, store, _ := setupGateway(t, nil)
	store.Set(context.Background(), "tok", "u-1")

	dead := New("http://127.0.0.1:1", store)
	_, err := dead.FetchPreferences(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
	if _, ok := store.Token(); !ok {
		t.Error("a transport failure must not clear the session")
	}
}

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client, store, _ := setupGateway(t, map[string]http.HandlerFunc{
		"POST /prefs": respondJSON(http.StatusOK, `{"ok":true}`),
	}, WithMetrics(metrics))
	store.Set(context.Background(), "tok", "u-1")

	client.SavePreferences(context.Background(), models.PreferenceUpdate{Notify: true})
	bad := 99
	client.SavePreferences(context.Background(), models.PreferenceUpdate{RadiusKm: &bad})

	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("save_preferences", "ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("save_preferences", "validation")); got != 1 {
		t.Errorf("validation count = %v, want 1", got)
	}
}
