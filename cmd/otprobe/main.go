// Command otprobe exercises the protocol engine against a live server:
// it logs in, prints the MOTD and character list, and can optionally enter
// the world with one character and idle with keepalive pings until
// interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/otforge/otcore/config"
	"github.com/otforge/otcore/game"
	"github.com/otforge/otcore/login"
)

const pollInterval = 50 * time.Millisecond

var (
	configPath = flag.String("config", "config/client.yaml", "client config file")
	host       = flag.String("host", "", "login server host (overrides config)")
	port       = flag.Int("port", 0, "login server port (overrides config)")
	account    = flag.String("account", "", "account name")
	password   = flag.String("password", "", "account password")
	character  = flag.String("character", "", "enter the world with this character")
	verbose    = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *host != "" {
		cfg.LoginHost = *host
	}
	if *port != 0 {
		cfg.LoginPort = *port
	}
	if *account == "" {
		return fmt.Errorf("missing -account")
	}

	result, err := doLogin(ctx, cfg)
	if err != nil {
		return err
	}
	if !result.OK() {
		if result.Err != nil {
			return fmt.Errorf("login: %w", result.Err)
		}
		return fmt.Errorf("login rejected: %s", result.ErrorText)
	}

	if result.MOTD != "" {
		_, text := login.SplitMOTD(result.MOTD)
		fmt.Printf("motd: %s\n", text)
	}
	fmt.Printf("premium days: %d\n", result.PremiumDays)
	for _, c := range result.Characters {
		fmt.Printf("character: %s on %s (%s:%d)\n", c.Name, c.World, c.Address, c.Port)
	}

	if *character == "" {
		return nil
	}
	entry, ok := result.Characters.Find(*character)
	if !ok {
		return fmt.Errorf("character %q is not on the account", *character)
	}
	return enterWorld(ctx, cfg, entry)
}

// doLogin runs one login attempt, pumping the session until the result
// callback fires.
func doLogin(ctx context.Context, cfg config.Client) (login.Result, error) {
	resultCh := make(chan login.Result, 1)
	session := login.NewSession(cfg, func(r login.Result) { resultCh <- r })

	slog.Info("logging in", "host", cfg.LoginHost, "port", cfg.LoginPort, "account", *account)
	if err := session.Login(cfg.LoginHost, cfg.LoginPort, *account, *password); err != nil {
		return login.Result{}, err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			session.Cancel()
			return login.Result{}, ctx.Err()
		case r := <-resultCh:
			return r, nil
		case <-ticker.C:
			session.Poll()
		}
	}
}

// enterWorld connects the game session and idles in-world, polling and
// pinging, until the session is lost or the context is canceled.
func enterWorld(ctx context.Context, cfg config.Client, entry login.CharacterEntry) error {
	lostCh := make(chan error, 1)
	session := game.NewSession(cfg, game.Events{
		OnEnter: func(w game.WorldInfo) {
			slog.Info("in world", "player_id", w.PlayerID, "beat_ms", w.Beat)
		},
		OnLoginError: func(text string) {
			lostCh <- fmt.Errorf("enter world rejected: %s", text)
		},
		OnLost: func(err error) {
			lostCh <- err
		},
		OnDeath: func() {
			slog.Info("character died")
		},
		OnTextMessage: func(m game.TextMessage) {
			fmt.Printf("[%d] %s\n", m.Class, m.Text)
		},
		OnCreatureSpeak: func(sp game.CreatureSpeak) {
			fmt.Printf("%s: %s\n", sp.Name, sp.Text)
		},
	})

	slog.Info("entering world", "character", entry.Name, "host", entry.Address, "port", entry.Port)
	if err := session.Connect(entry.Address, int(entry.Port), *account, entry.Name, *password); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poll := time.NewTicker(pollInterval)
		defer poll.Stop()
		ping := time.NewTicker(cfg.PingInterval)
		defer ping.Stop()
		for {
			select {
			case <-gctx.Done():
				session.Disconnect()
				return gctx.Err()
			case err := <-lostCh:
				return err
			case <-ping.C:
				if session.State() == game.StateInWorld {
					if err := session.Ping(); err != nil {
						slog.Warn("ping failed", "error", err)
					}
					st := session.Stats()
					slog.Debug("keepalive", "rtt", st.RoundTrip, "sent", st.BytesSent, "received", st.BytesReceived)
				}
			case <-poll.C:
				session.Poll()
			}
		}
	})
	return g.Wait()
}
