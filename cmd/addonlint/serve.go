// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/addonlint/services/lint"
)

const (
	maxBodyBytes    = 64 << 20
	shutdownTimeout = 10 * time.Second
)

func serveCmd(a *app) *cobra.Command {
	var addr string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lint API over HTTP",
		Long: `Serve POST /v1/lint/scan, GET /v1/lint/rules, GET /v1/lint/entities,
GET /v1/lint/health and /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTPAddr = addr
			}
			return a.runServe(cmd.Context(), debug)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", a.cfg.HTTPAddr, "Listen address")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable gin debug mode and access logs")
	return cmd
}

func (a *app) runServe(ctx context.Context, debug bool) error {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	sc, err := a.newScanner(ctx)
	if err != nil {
		return err
	}
	handlers := lint.NewHandlers(lint.NewService(sc, a.logger))
	router := lint.NewRouter(handlers, lint.RouterOptions{
		Limiter:      lint.NewRateLimiter(a.cfg.RatePerSec, a.cfg.RateBurst),
		MaxBodyBytes: maxBodyBytes,
		AccessLog:    debug,
	})

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting addonlint server", slog.String("address", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down addonlint server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
