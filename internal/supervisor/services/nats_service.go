// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package services

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/packline/internal/logging"
)

// EmbeddedNATS is satisfied by *eventbus.EmbeddedServer.
type EmbeddedNATS interface {
	ClientURL() string
	Running() bool
	Shutdown(ctx context.Context) error
}

// NATSServerService owns the embedded NATS server's lifetime.
//
// The server is started before the tree because the event bus connects to it
// during wiring. Serve watches it and shuts it down when ctx ends. A server
// that stops on its own cannot be restarted in place, so the service then
// terminates the whole tree and lets the process manager restart Packline.
type NATSServerService struct {
	server          EmbeddedNATS
	checkInterval   time.Duration
	shutdownTimeout time.Duration
	name            string
}

// NewNATSServerService wraps server with a 5s liveness check and a 10s
// shutdown timeout.
func NewNATSServerService(server EmbeddedNATS) *NATSServerService {
	return NewNATSServerServiceWithTimeouts(server, 5*time.Second, 10*time.Second)
}

// NewNATSServerServiceWithTimeouts is NewNATSServerService with explicit
// timings. Non-positive values fall back to the defaults.
func NewNATSServerServiceWithTimeouts(server EmbeddedNATS, checkInterval, shutdownTimeout time.Duration) *NATSServerService {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &NATSServerService{
		server:          server,
		checkInterval:   checkInterval,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-server",
	}
}

// Serve implements suture.Service.
func (s *NATSServerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("Embedded NATS server did not stop cleanly")
			}
			return ctx.Err()

		case <-ticker.C:
			if !s.server.Running() {
				logging.Error().Str("url", s.server.ClientURL()).Msg("Embedded NATS server stopped unexpectedly")
				return suture.ErrTerminateSupervisorTree
			}
		}
	}
}

// String names the service in supervisor logs.
func (s *NATSServerService) String() string {
	return s.name
}
