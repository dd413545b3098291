// Command guardian is the command-line client of the food marketplace.
//
// Usage:
//
//	guardian [global flags] <command> [arguments]
//
// Commands:
//
//	signup <email> <password>          create a subscriber account
//	login <email> <password>           sign in with the configured role
//	logout                             forget the session
//	whoami                             show the current session
//	register-store [flags]             create a store account and publish its profile
//	stores                             list registered stores
//	tags                               list the food tags
//	geocode <address>                  resolve an address
//	prefs show                         show stored preferences
//	prefs save [flags]                 edit and save preferences
//	upload <file>                      submit a photo for detection
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mmynk/foodguardian/pkg/logging"
)

func main() {
	logging.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "guardian:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	a, rest, err := newApp(ctx, args, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	if len(rest) == 0 {
		return errors.New("missing command (try: login, prefs show, upload)")
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "signup":
		return a.signup(ctx, cmdArgs)
	case "login":
		return a.login(ctx, cmdArgs)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "register-store":
		return a.registerStore(ctx, cmdArgs)
	case "stores":
		return a.stores(ctx)
	case "tags":
		return a.tags(ctx)
	case "geocode":
		return a.resolve(ctx, cmdArgs)
	case "prefs":
		return a.prefs(ctx, cmdArgs)
	case "upload":
		return a.submitPhoto(ctx, cmdArgs)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
