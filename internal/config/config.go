// Package config reads the settings of the guardian CLI and the dev server
// from command-line flags, falling back to environment variables.
//
// Flags take precedence over the environment:
//
//	GUARDIAN_API_URL       -api         backend base URL
//	GUARDIAN_GEOCODER_URL  -geocoder    Nominatim base URL
//	GUARDIAN_SESSION_DB    -session-db  SQLite file holding the session
//	GUARDIAN_ROLE          -role        "user" or "store"
//
//	PORT                   -p           dev server port
//	DB_PATH                -db          dev server SQLite file
//	JWT_SECRET             -jwt-secret  token signing key
//	JWT_EXPIRES_SECONDS    -jwt-ttl     token lifetime
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mmynk/foodguardian/internal/geocode"
	"github.com/mmynk/foodguardian/internal/models"
)

const (
	DefaultAPIURL   = "http://localhost:5000"
	DefaultPort     = 5000
	DefaultDBPath   = "./data/foodguardian.db"
	DefaultTokenTTL = 7 * 24 * time.Hour
)

// Client is the configuration of the guardian CLI.
type Client struct {
	APIURL      string
	GeocoderURL string
	SessionDB   string
	Role        models.Role
}

// Server is the configuration of the dev server.
type Server struct {
	Port      int
	DBPath    string
	JWTSecret string
	TokenTTL  time.Duration
	// EphemeralSecret is set when no secret was configured and a random one
	// was generated; tokens then stop working when the server restarts.
	EphemeralSecret bool
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// ParseClient parses the global CLI flags in args and returns the remaining
// arguments (the subcommand and its own arguments).
func ParseClient(args []string) (Client, []string, error) {
	var (
		cfg  Client
		role string
	)

	fs := flag.NewFlagSet("guardian", flag.ContinueOnError)
	fs.StringVar(&cfg.APIURL, "api", "", "Backend base URL (env GUARDIAN_API_URL)")
	fs.StringVar(&cfg.GeocoderURL, "geocoder", "", "Nominatim base URL (env GUARDIAN_GEOCODER_URL)")
	fs.StringVar(&cfg.SessionDB, "session-db", "", "Session database file (env GUARDIAN_SESSION_DB)")
	fs.StringVar(&role, "role", "", "Actor role: user or store (env GUARDIAN_ROLE)")

	if err := fs.Parse(args); err != nil {
		return Client{}, nil, err
	}

	if cfg.APIURL == "" {
		cfg.APIURL = getEnv("GUARDIAN_API_URL", DefaultAPIURL)
	}
	if cfg.GeocoderURL == "" {
		cfg.GeocoderURL = getEnv("GUARDIAN_GEOCODER_URL", geocode.DefaultBaseURL)
	}
	for name, raw := range map[string]string{"api": cfg.APIURL, "geocoder": cfg.GeocoderURL} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return Client{}, nil, fmt.Errorf("invalid %s URL %q", name, raw)
		}
	}

	if cfg.SessionDB == "" {
		cfg.SessionDB = getEnv("GUARDIAN_SESSION_DB", defaultSessionDB())
	}

	if role == "" {
		role = getEnv("GUARDIAN_ROLE", string(models.RoleUser))
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return Client{}, nil, err
	}
	cfg.Role = r

	return cfg, fs.Args(), nil
}

func defaultSessionDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./foodguardian-session.db"
	}
	return filepath.Join(dir, "foodguardian", "session.db")
}

// ParseServer parses the dev server flags.
func ParseServer(args []string) (Server, error) {
	var (
		cfg Server
		ttl int
	)

	fs := flag.NewFlagSet("devserver", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "p", 0, "Server port (env PORT)")
	fs.StringVar(&cfg.DBPath, "db", "", "SQLite database file (env DB_PATH)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "Token signing key (prefer env JWT_SECRET)")
	fs.IntVar(&ttl, "jwt-ttl", 0, "Token lifetime in seconds (env JWT_EXPIRES_SECONDS)")

	if err := fs.Parse(args); err != nil {
		return Server{}, err
	}

	if cfg.Port == 0 {
		port, err := strconv.Atoi(getEnv("PORT", strconv.Itoa(DefaultPort)))
		if err != nil {
			return Server{}, errors.New("invalid PORT env variable")
		}
		cfg.Port = port
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Server{}, fmt.Errorf("port %d out of range", cfg.Port)
	}

	if cfg.DBPath == "" {
		cfg.DBPath = getEnv("DB_PATH", DefaultDBPath)
	}

	if ttl == 0 {
		if raw := os.Getenv("JWT_EXPIRES_SECONDS"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return Server{}, errors.New("invalid JWT_EXPIRES_SECONDS env variable")
			}
			ttl = v
		}
	}
	switch {
	case ttl < 0:
		return Server{}, errors.New("token lifetime must be positive")
	case ttl == 0:
		cfg.TokenTTL = DefaultTokenTTL
	default:
		cfg.TokenTTL = time.Duration(ttl) * time.Second
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return Server{}, fmt.Errorf("failed to generate secret: %w", err)
		}
		cfg.JWTSecret = hex.EncodeToString(buf)
		cfg.EphemeralSecret = true
	}

	return cfg, nil
}
