package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmynk/foodguardian/internal/auth"
	"github.com/mmynk/foodguardian/internal/devserver"
	"github.com/mmynk/foodguardian/internal/storage/sqlite"
)

// setupCLI starts a dev backend and a fake geocoder and returns the global
// flags pointing the CLI at them.
func setupCLI(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.New(filepath.Join(dir, "backend.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	backend := httptest.NewServer(devserver.New(store, auth.NewJWTManager("secret", time.Hour)).Handler())
	geocoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"lat":"51.5","lon":"-0.15","display_name":"Baker Street, London"}]`)
	}))
	t.Cleanup(func() {
		backend.Close()
		geocoder.Close()
		store.Close()
	})

	return []string{
		"-api", backend.URL,
		"-geocoder", geocoder.URL,
		"-session-db", filepath.Join(dir, "session.db"),
	}
}

func runCLI(t *testing.T, global []string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), append(append([]string{}, global...), args...), &out)
	return out.String(), err
}

func mustRun(t *testing.T, global []string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, global, args...)
	if err != nil {
		t.Fatalf("guardian %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestUserWorkflow(t *testing.T) {
	global := setupCLI(t)

	if out := mustRun(t, global, "whoami"); !strings.Contains(out, "Not signed in") {
		t.Errorf("whoami before signup: %q", out)
	}
	mustRun(t, global, "signup", "sam@example.com", "secret1")

	// The session survives between invocations.
	if out := mustRun(t, global, "whoami"); !strings.Contains(out, "Signed in as user") {
		t.Errorf("whoami after signup: %q", out)
	}

	out := mustRun(t, global, "prefs", "save", "-toggle", "apple,bread", "-radius", "80", "-address", "Baker Street")
	if !strings.Contains(out, "Apple, Bread") || !strings.Contains(out, "Radius:   50 km") {
		t.Errorf("prefs save output: %q", out)
	}

	out = mustRun(t, global, "prefs", "show")
	if !strings.Contains(out, "Location: (51.500000, -0.150000)") {
		t.Errorf("prefs show output: %q", out)
	}

	if _, err := runCLI(t, global, "prefs", "save", "-toggle", "caviar"); err == nil {
		t.Error("expected unknown tag error")
	}

	photo := filepath.Join(t.TempDir(), "crate.png")
	var img bytes.Buffer
	png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 16, 16)))
	if err := os.WriteFile(photo, img.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	if out := mustRun(t, global, "upload", photo); !strings.Contains(out, "detected: bread, cake") {
		t.Errorf("upload output: %q", out)
	}

	mustRun(t, global, "logout")
	if _, err := runCLI(t, global, "prefs", "show"); err == nil {
		t.Error("expected prefs show to fail after logout")
	}
}

func TestStoreWorkflow(t *testing.T) {
	global := append(setupCLI(t), "-role", "store")

	out := mustRun(t, global, "register-store",
		"-name", "Baker Street Bakery", "-email", "owner@bakery.example",
		"-password", "secret1", "-address", "221B Baker St")
	if !strings.Contains(out, "Registered store as store") {
		t.Errorf("register-store output: %q", out)
	}

	if out := mustRun(t, global, "stores"); !strings.Contains(out, "Baker Street Bakery") {
		t.Errorf("stores output: %q", out)
	}

	if _, err := runCLI(t, global, "signup", "x@example.com", "secret1"); err == nil {
		t.Error("store role should not sign up subscribers")
	}
}

func TestUsageErrors(t *testing.T) {
	global := setupCLI(t)
	for _, args := range [][]string{{}, {"dance"}, {"login", "only-email"}, {"prefs"}, {"prefs", "delete"}, {"upload"}} {
		if _, err := runCLI(t, global, args...); err == nil {
			t.Errorf("guardian %v: expected error", args)
		}
	}
}

func TestTags(t *testing.T) {
	out := mustRun(t, setupCLI(t), "tags")
	if lines := strings.Count(out, "\n"); lines != 18 {
		t.Errorf("tags printed %d lines, want 18", lines)
	}
}
