package devserver_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/foodguardian/internal/auth"
	"github.com/mmynk/foodguardian/internal/catalog"
	"github.com/mmynk/foodguardian/internal/devserver"
	"github.com/mmynk/foodguardian/internal/gateway"
	"github.com/mmynk/foodguardian/internal/geocode"
	"github.com/mmynk/foodguardian/internal/models"
	"github.com/mmynk/foodguardian/internal/prefsync"
	"github.com/mmynk/foodguardian/internal/service"
	"github.com/mmynk/foodguardian/internal/session"
	"github.com/mmynk/foodguardian/internal/storage/sqlite"
	"github.com/mmynk/foodguardian/internal/upload"
)

// TestClientAgainstDevServer drives every client component against a real
// dev backend.
func TestClientAgainstDevServer(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backendStore, err := sqlite.New(filepath.Join(dir, "backend.db"))
	if err != nil {
		t.Fatalf("backend store: %v", err)
	}
	defer backendStore.Close()
	backend := httptest.NewServer(devserver.New(backendStore, auth.NewJWTManager("secret", time.Hour)).Handler())
	defer backend.Close()

	geocoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"lat":"51.5","lon":"-0.15","display_name":"Baker Street, London"}]`)
	}))
	defer geocoder.Close()
	resolver := geocode.NewNominatim(geocoder.URL)

	clientKV, err := sqlite.New(filepath.Join(dir, "client.db"))
	if err != nil {
		t.Fatalf("client store: %v", err)
	}
	defer clientKV.Close()

	// Store side: register and check the directory.
	storeSessions, err := session.Open(ctx, models.RoleStore, clientKV, nil)
	if err != nil {
		t.Fatalf("open store sessions: %v", err)
	}
	storeClient := gateway.New(backend.URL, storeSessions)
	storeAccounts := service.NewAccountService(storeClient, storeSessions, resolver, nil)

	storeSession, err := storeAccounts.RegisterStore(ctx, models.StoreRegistration{
		Name: "Baker Street Bakery", Email: "owner@bakery.example", Password: "secret1", Address: "221B Baker St",
	})
	if err != nil {
		t.Fatalf("RegisterStore: %v", err)
	}
	stores, err := storeClient.ListStores(ctx)
	if err != nil {
		t.Fatalf("ListStores: %v", err)
	}
	if len(stores) != 1 || stores[0].StoreID != storeSession.SubjectID || stores[0].Location.Lat() != 51.5 {
		t.Fatalf("stores = %+v", stores)
	}

	// User side: signup, edit preferences, upload a photo.
	userSessions, err := session.Open(ctx, models.RoleUser, clientKV, nil)
	if err != nil {
		t.Fatalf("open user sessions: %v", err)
	}
	userClient := gateway.New(backend.URL, userSessions)
	userAccounts := service.NewAccountService(userClient, userSessions, resolver, nil)
	if _, err := userAccounts.SignupUser(ctx, "sam@example.com", "secret1"); err != nil {
		t.Fatalf("SignupUser: %v", err)
	}

	syncer := prefsync.New(userClient, resolver, catalog.Default(), nil)
	if err := syncer.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	syncer.ToggleTag("apple")
	syncer.ToggleTag("bread")
	syncer.SetRadius(12)
	if err := syncer.Save(ctx, "Baker Street"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stored, err := userClient.FetchPreferences(ctx)
	if err != nil {
		t.Fatalf("FetchPreferences: %v", err)
	}
	if !stored.Equal(syncer.Baseline()) {
		t.Errorf("server %+v differs from baseline %+v", stored, syncer.Baseline())
	}
	if stored.Coordinate == nil || stored.Coordinate.Lng() != -0.15 || stored.RadiusKm != 12 {
		t.Errorf("stored = %+v", stored)
	}

	var img bytes.Buffer
	png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 32, 32)))
	submitter := upload.NewSubmitter(userClient, nil)
	if _, err := submitter.SelectFile(ctx, "crate.png", "", &img); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	record, err := submitter.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if record.ID == "" || len(record.DetectedItems) != 2 || record.DetectedItems[0] != "bread" {
		t.Errorf("record = %+v", record)
	}

	// Both roles share one database without seeing each other's session.
	if tok, _ := storeSessions.Token(); tok == "" {
		t.Error("store session lost")
	}
	if err := userAccounts.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := userClient.FetchPreferences(ctx); !errors.Is(err, gateway.ErrAuth) {
		t.Errorf("FetchPreferences after logout: %v", err)
	}
}
