// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashika557/stayspot-realtime/internal/logging"
)

type blockingService struct {
	name    string
	running atomic.Bool
}

func (s *blockingService) Serve(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingService) String() string { return s.name }

func TestNewTreeAppliesDefaults(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), TreeConfig{})
	require.NotNil(t, tree)
	assert.Equal(t, 5.0, tree.config.FailureThreshold)
	assert.Equal(t, 30.0, tree.config.FailureDecay)
	assert.Equal(t, 15*time.Second, tree.config.FailureBackoff)
	assert.Equal(t, 10*time.Second, tree.config.ShutdownTimeout)
}

func TestTreeRunsServicesAcrossLayers(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), DefaultTreeConfig())

	session := &blockingService{name: "session-svc"}
	realtime := &blockingService{name: "realtime-svc"}
	gateway := &blockingService{name: "gateway-svc"}
	tree.AddSessionService(session)
	tree.AddRealtimeService(realtime)
	tree.AddGatewayService(gateway)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if session.running.Load() && realtime.running.Load() && gateway.running.Load() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, session.running.Load(), "session layer never started")
	require.True(t, realtime.running.Load(), "realtime layer never started")
	require.True(t, gateway.running.Load(), "gateway layer never started")

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}
