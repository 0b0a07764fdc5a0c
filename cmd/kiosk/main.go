package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmland-checkout/internal/cache"
	"farmland-checkout/internal/client"
	"farmland-checkout/internal/config"
	"farmland-checkout/internal/logger"
	"farmland-checkout/internal/navigation"
	"farmland-checkout/internal/notify"

	"github.com/facebookgo/clock"
)

func main() {
	cfg, err := config.Load[config.Kiosk]()
	if err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	// stdout belongs to the kiosk screen
	log := logger.NewWithWriter(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var timers cache.TimerStore = cache.NewMemoryTimerStore()
	rdb, err := client.InitRedisClient(ctx, &config.Redis{Addr: cfg.RedisAddr})
	if err != nil {
		log.Error("init redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		// outlive the countdown so a restart mid-wait still resumes
		timers = cache.NewRedisTimerStore(rdb, 2*cfg.Checkout.Countdown)
	}

	backend := client.NewBackendClient(cfg.APIURL, cfg.Token, cfg.Checkout.RequestTimeout, log)
	term := notify.NewTerminal(os.Stdout, os.Stdin, log)

	var userID *string
	if profile, err := backend.GetProfile(ctx); err != nil {
		log.Warn("load profile", "error", err)
	} else {
		userID = &profile.ID
	}

	k, err := newKiosk(cfg, log, term, backend, timers, clock.New(), userID)
	if err != nil {
		log.Error("build kiosk", "error", err)
		os.Exit(1)
	}

	local := k.localServer()
	go func() {
		if err := local.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("local listener", "error", err)
		}
	}()

	if err := k.router.Navigate(ctx, navigation.RouteHome, navigation.Params{}); err != nil {
		log.Error("show home", "error", err)
	}

	for {
		line, err := term.Prompt(ctx, "> ")
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				log.Error("read command", "error", err)
			}
			break
		}
		if err := k.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			term.Error(err.Error())
		}
	}

	k.leave(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := local.Shutdown(shutdownCtx); err != nil {
		log.Error("local listener shutdown", "error", err)
	}
}
