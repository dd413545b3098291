package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/foodguardian/internal/catalog"
	"github.com/mmynk/foodguardian/internal/config"
	"github.com/mmynk/foodguardian/internal/gateway"
	"github.com/mmynk/foodguardian/internal/geocode"
	"github.com/mmynk/foodguardian/internal/models"
	"github.com/mmynk/foodguardian/internal/prefsync"
	"github.com/mmynk/foodguardian/internal/service"
	"github.com/mmynk/foodguardian/internal/session"
	"github.com/mmynk/foodguardian/internal/storage/sqlite"
	"github.com/mmynk/foodguardian/internal/upload"
)

// app wires the client components for one invocation.
type app struct {
	out      io.Writer
	db       *sqlite.SQLiteStore
	sessions *session.Store
	client   *gateway.Client
	resolver *geocode.Nominatim
	catalog  *catalog.Static
	accounts *service.AccountService
	registry *prometheus.Registry
}

func newApp(ctx context.Context, args []string, out io.Writer) (*app, []string, error) {
	cfg, rest, err := config.ParseClient(args)
	if err != nil {
		return nil, nil, err
	}

	db, err := sqlite.New(cfg.SessionDB)
	if err != nil {
		return nil, nil, fmt.Errorf("open session database: %w", err)
	}
	sessions, err := session.Open(ctx, cfg.Role, db, slog.Default())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	a := &app{
		out:      out,
		db:       db,
		sessions: sessions,
		resolver: geocode.NewNominatim(cfg.GeocoderURL),
		catalog:  catalog.Default(),
		registry: prometheus.NewRegistry(),
	}
	a.client = gateway.New(cfg.APIURL, sessions,
		gateway.WithMetrics(gateway.NewMetrics(a.registry)),
		gateway.OnSessionExpired(func() {
			fmt.Fprintln(out, "Session expired; run `guardian login` again.")
		}),
	)
	a.accounts = service.NewAccountService(a.client, sessions, a.resolver, slog.Default())
	return a, rest, nil
}

func (a *app) close() {
	a.logCallStats()
	a.db.Close()
}

// logCallStats writes the backend call counters at debug level.
func (a *app) logCallStats() {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		slog.Debug("failed to gather call stats", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			attrs := []any{"metric", mf.GetName(), "count", m.GetCounter().GetValue()}
			for _, l := range m.GetLabel() {
				attrs = append(attrs, l.GetName(), l.GetValue())
			}
			slog.Debug("backend calls", attrs...)
		}
	}
}

func (a *app) printSession(verb string, sess models.Session) {
	fmt.Fprintf(a.out, "%s as %s %s\n", verb, sess.Role, sess.SubjectID)
}

func twoArgs(args []string, usage string) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("usage: %s", usage)
	}
	return args[0], args[1], nil
}

func (a *app) signup(ctx context.Context, args []string) error {
	email, password, err := twoArgs(args, "signup <email> <password>")
	if err != nil {
		return err
	}
	sess, err := a.accounts.SignupUser(ctx, email, password)
	if err != nil {
		return err
	}
	a.printSession("Signed up", sess)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	email, password, err := twoArgs(args, "login <email> <password>")
	if err != nil {
		return err
	}
	sess, err := a.accounts.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.printSession("Logged in", sess)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.accounts.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *app) whoami() error {
	sess, ok := a.accounts.Whoami()
	if !ok {
		fmt.Fprintf(a.out, "Not signed in (%s)\n", a.sessions.Role())
		return nil
	}
	a.printSession("Signed in", sess)
	return nil
}

func (a *app) registerStore(ctx context.Context, args []string) error {
	var reg models.StoreRegistration
	fs := flag.NewFlagSet("register-store", flag.ContinueOnError)
	fs.StringVar(&reg.Name, "name", "", "Store name")
	fs.StringVar(&reg.Email, "email", "", "Login email")
	fs.StringVar(&reg.Password, "password", "", "Login password")
	fs.StringVar(&reg.Address, "address", "", "Street address, resolved to a coordinate")
	fs.StringVar(&reg.Phone, "phone", "", "Contact phone")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := a.accounts.RegisterStore(ctx, reg)
	if err != nil {
		return err
	}
	a.printSession("Registered store", sess)
	return nil
}

func (a *app) stores(ctx context.Context) error {
	stores, err := a.client.ListStores(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLOCATION")
	for _, s := range stores {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.StoreID, s.Name, s.Location)
	}
	return tw.Flush()
}

func (a *app) tags(ctx context.Context) error {
	tags, err := a.catalog.Tags(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, t := range tags {
		fmt.Fprintf(tw, "%s\t%s\n", t.ID, t.DisplayName)
	}
	return tw.Flush()
}

func (a *app) resolve(ctx context.Context, args []string) error {
	m, err := a.resolver.Lookup(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\n", m.Coordinate, m.Label)
	return nil
}

func (a *app) prefs(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: prefs show | prefs save [-toggle tags] [-radius km] [-address text]")
	}

	syncer := prefsync.New(a.client, a.resolver, a.catalog, slog.Default())
	defer syncer.Close()

	switch args[0] {
	case "show":
		if err := syncer.Load(ctx); err != nil {
			return err
		}
		a.printPrefs(syncer.View())
		return nil

	case "save":
		var (
			toggle  string
			radius  int
			address string
		)
		fs := flag.NewFlagSet("prefs save", flag.ContinueOnError)
		fs.StringVar(&toggle, "toggle", "", "Comma-separated tag ids to select or deselect")
		fs.IntVar(&radius, "radius", 0, "Alert radius in km (clamped to 1-50)")
		fs.StringVar(&address, "address", "", "Address to use as the alert location")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		if err := syncer.Load(ctx); err != nil {
			return err
		}
		for _, id := range strings.Split(toggle, ",") {
			if id = strings.TrimSpace(id); id == "" {
				continue
			}
			if _, ok := a.catalog.Lookup(id); !ok {
				return fmt.Errorf("unknown tag %q (see `guardian tags`)", id)
			}
			syncer.ToggleTag(id)
		}
		if radius != 0 {
			syncer.SetRadius(radius)
		}
		if err := syncer.Save(ctx, address); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Preferences saved")
		a.printPrefs(syncer.View())
		return nil

	default:
		return fmt.Errorf("unknown prefs command %q", args[0])
	}
}

func (a *app) printPrefs(v prefsync.View) {
	names := make([]string, 0, len(v.Selected))
	for _, id := range v.Selected {
		names = append(names, a.catalog.DisplayName(id))
	}
	location := "not set"
	if v.Coordinate != nil {
		location = v.Coordinate.String()
	}
	fmt.Fprintf(a.out, "Tags:     %s\n", strings.Join(names, ", "))
	fmt.Fprintf(a.out, "Radius:   %d km\n", v.RadiusKm)
	fmt.Fprintf(a.out, "Location: %s\n", location)
}

func (a *app) submitPhoto(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: upload <file>")
	}
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	submitter := upload.NewSubmitter(a.client, slog.Default())
	preview, err := submitter.SelectFile(ctx, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), f)
	if err != nil {
		return err
	}
	if preview.Width > 0 {
		fmt.Fprintf(a.out, "Uploading %s (%dx%d)\n", filepath.Base(path), preview.Width, preview.Height)
	}

	record, err := submitter.Submit(ctx)
	if err != nil {
		return err
	}
	if record.Processing() {
		fmt.Fprintf(a.out, "Upload %s received; detection still processing\n", record.ID)
		return nil
	}
	fmt.Fprintf(a.out, "Upload %s detected: %s\n", record.ID, strings.Join(record.DetectedItems, ", "))
	return nil
}
