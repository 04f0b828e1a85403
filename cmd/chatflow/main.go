package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/chatflow/internal/app"
	"github.com/matheus3301/chatflow/internal/auth"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/config"
	"github.com/matheus3301/chatflow/internal/directory"
	"github.com/matheus3301/chatflow/internal/lock"
	"github.com/matheus3301/chatflow/internal/profile"
	"github.com/matheus3301/chatflow/internal/session"
	intsync "github.com/matheus3301/chatflow/internal/sync"
	"github.com/matheus3301/chatflow/internal/tui"
	"github.com/matheus3301/chatflow/internal/tui/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const stopTimeout = 10 * time.Second

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	serverFlag := flag.String("server", "", "chat server base URL (overrides config)")
	socketFlag := flag.String("socket", "", "realtime websocket URL (overrides config)")
	logStderr := flag.Bool("log-stderr", false, "also write logs to stderr")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *serverFlag != "" {
		cfg.Server.BaseURL = *serverFlag
	}
	if *socketFlag != "" {
		cfg.Server.SocketURL = *socketFlag
	}

	name := profile.Resolve(*profileFlag, cfg)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	level := zapcore.InfoLevel
	if *debug {
		level = zapcore.DebugLevel
	}

	var ui *tui.App
	fxApp := fx.New(
		app.Module(app.Params{
			Profile:   name,
			Config:    cfg,
			LogStderr: *logStderr,
			LogLevel:  level,
		}),
		app.WithZapLogger(),
		fx.Provide(func(engine *intsync.Engine, dir *directory.Directory, authSvc *auth.Service, sessions *session.Store, b *bus.Bus, logger *zap.Logger) *tui.App {
			vm := model.NewViewModel(engine, dir, authSvc, sessions)
			return tui.New(vm, b, tui.Options{
				Profile:       name,
				Notifications: cfg.UI.NotificationsEnabled(),
			}, logger.Named("tui"))
		}),
		fx.Populate(&ui),
	)
	if err := fxApp.Err(); err != nil {
		exit(err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		exit(err)
	}

	runErr := ui.Run()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
	if runErr != nil {
		exit(runErr)
	}
}

func exit(err error) {
	var held *lock.LockHeldError
	if errors.As(err, &held) {
		fmt.Fprintf(os.Stderr, "error: %v\nIs another chatflow already running on this profile?\n", held)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
