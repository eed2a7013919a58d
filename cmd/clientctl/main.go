// Command clientctl blocks and unblocks client accounts in the order store.
//
//	clientctl block -phone 987654321
//	clientctl unblock -phone +51987654321
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/yeraldo2021/app-delivery-2025/internal/config"
	"github.com/yeraldo2021/app-delivery-2025/internal/identity"
	"github.com/yeraldo2021/app-delivery-2025/internal/infra"
	"github.com/yeraldo2021/app-delivery-2025/internal/logging"
)

var errUsage = errors.New("usage: clientctl block|unblock -phone <number>")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL must be set")
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.AppName+"-clientctl")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := infra.NewPostgresPool(ctx, infra.PostgresOptions{
		URL:            cfg.DatabaseURL,
		MaxConns:       2,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	svc := identity.NewService(identity.NewPostgresRepository(db), cfg.PINSecret, logger)
	if err := run(ctx, os.Args[1:], svc, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string, svc *identity.Service, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	var blocked bool
	switch args[0] {
	case "block":
		blocked = true
	case "unblock":
	default:
		return errUsage
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	phone := fs.String("phone", "", "client phone number")
	if err := fs.Parse(args[1:]); err != nil || *phone == "" {
		return errUsage
	}

	client, err := svc.SetBlocked(ctx, *phone, blocked)
	if err != nil {
		return fmt.Errorf("%s %s: %w", args[0], *phone, err)
	}
	fmt.Fprintf(out, "client %d %s blocked=%t\n", client.ID, client.Phone, client.Blocked)
	return nil
}
