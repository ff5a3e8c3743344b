package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fox-one/multisig"
	"golang.org/x/sync/errgroup"
)

var cfg struct {
	dbPath   string
	port     int
	issuer   string
	secret   string
	registry string
	sign     string
	ttl      time.Duration
}

func init() {
	flag.StringVar(&cfg.dbPath, "db", "multisig.db", "database path")
	flag.IntVar(&cfg.port, "port", 8080, "http port")
	flag.StringVar(&cfg.issuer, "issuer", "multisig", "jwt issuer")
	flag.StringVar(&cfg.secret, "secret", "", "jwt hmac secret")
	flag.StringVar(&cfg.registry, "registry", "0x000000000000000000000000000000000000fac7", "registry address wallets are derived from")
	flag.StringVar(&cfg.sign, "sign", "", "print a bearer token for this address and exit")
	flag.DurationVar(&cfg.ttl, "ttl", 24*time.Hour, "ttl of tokens printed by -sign")

	flag.Parse()
}

func main() {
	if cfg.secret == "" {
		slog.Error("secret is required")
		os.Exit(1)
	}

	registry, err := multisig.HexToAddress(cfg.registry)
	if err != nil {
		slog.Error("parse registry address failed", slog.Any("err", err))
		os.Exit(1)
	}

	c := multisig.Config{
		Registry: registry,
		Issuer:   cfg.issuer,
		Secret:   []byte(cfg.secret),
	}

	if cfg.sign != "" {
		os.Exit(sign(c, cfg.sign))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	db, err := badger.Open(badger.DefaultOptions(cfg.dbPath))
	if err != nil {
		slog.Error("open db failed", slog.Any("err", err))
		return
	}

	defer db.Close()

	slog.Info("multisig launch", "ver", "0.01", "registry", registry)

	svr := multisig.NewServer(db, c)

	s := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.port),
		Handler: svr.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http listen", slog.String("addr", s.Addr))
		return s.ListenAndServe()
	})

	g.Go(func() error {
		<-ctx.Done()

		return s.Shutdown(context.Background())
	})

	g.Go(func() error {
		return runGC(ctx, db, time.Minute)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Info("multisig exit", slog.Any("err", err))
	}
}

func sign(c multisig.Config, address string) int {
	addr, err := multisig.HexToAddress(address)
	if err != nil {
		slog.Error("parse address failed", slog.Any("err", err))
		return 1
	}

	token, err := multisig.NewToken(c, addr, cfg.ttl)
	if err != nil {
		slog.Error("sign token failed", slog.Any("err", err))
		return 1
	}

	fmt.Println(token)
	return 0
}

func runGC(ctx context.Context, db *badger.DB, dur time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dur):
			_ = db.RunValueLogGC(0.7)
		}
	}
}
