// Package main is the entry point for the mirror viewer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/mirror-viewer/internal/assets"
	"github.com/Faultbox/mirror-viewer/internal/config"
	"github.com/Faultbox/mirror-viewer/internal/control"
	"github.com/Faultbox/mirror-viewer/internal/engine/renderer"
	"github.com/Faultbox/mirror-viewer/internal/engine/window"
	"github.com/Faultbox/mirror-viewer/internal/logger"
	"github.com/Faultbox/mirror-viewer/internal/viewer"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logOpts := logger.Options{Level: cfg.Logging.Level, Console: true, JSON: cfg.Logging.JSON}
	if cfg.Logging.LogFile != "" {
		logOpts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	if err := logger.InitWithOptions(logOpts); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Mirror Viewer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("viewer error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("viewer closed normally")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	win, err := window.New(window.Config{
		Title:       "Mirror Viewer",
		Width:       cfg.Graphics.Width,
		Height:      cfg.Graphics.Height,
		Fullscreen:  cfg.Graphics.Fullscreen,
		VSync:       cfg.Graphics.VSync,
		MSAASamples: cfg.Graphics.MSAASamples,
	})
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer win.Close()

	width, height := win.DrawableSize()
	rend, err := renderer.New(renderer.Config{
		Width:       width,
		Height:      height,
		MSAASamples: cfg.Graphics.MSAASamples,
	})
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	defer rend.Close()

	mgr := assets.NewManager(assets.Options{
		Roots:          cfg.Assets.Roots,
		Cache:          cfg.Assets.Cache,
		MaxTextureSize: cfg.Graphics.MaxTextureSize,
	})

	v, err := viewer.New(viewer.Options{
		Config:   cfg,
		Renderer: rend,
		Models:   mgr,
		Images:   mgr,
		Width:    width,
		Height:   height,
	})
	if err != nil {
		return fmt.Errorf("create viewer: %w", err)
	}
	defer v.Close()

	if cfg.Assets.Watch {
		w, err := assets.NewWatcher(mgr, func(file string) {
			v.Post(func() { v.ReloadTexture(file, mgr.Resolve) })
		})
		if err != nil {
			logger.Warn("asset watching disabled", zap.Error(err))
		} else {
			defer w.Close()
		}
	}

	serverDone := make(chan struct{})
	if cfg.Control.Listen != "" {
		srv := control.NewServer(v)
		go func() {
			defer close(serverDone)
			if err := srv.ListenAndServe(ctx, cfg.Control.Listen); err != nil {
				logger.Error("control server error", zap.Error(err))
			}
		}()
	} else {
		close(serverDone)
	}

	v.LoadModel(cfg.Scene.Model)

	err = v.Run(ctx, win)

	// The control server stops with the loop, whatever ended it.
	stop()
	<-serverDone
	return err
}
