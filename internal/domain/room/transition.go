package room

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/listen-api/internal/domain/presence"
)

// legalTransitions lists the modes reachable from each mode. queued-playback
// to itself covers advancing to the next track and pause/resume.
var legalTransitions = map[Mode]map[Mode]bool{
	ModeIdle: {
		ModeQueuedPlayback: true,
		ModeLiveBroadcast:  true,
	},
	ModeQueuedPlayback: {
		ModeQueuedPlayback: true,
		ModeIdle:           true,
		ModeLiveBroadcast:  true,
	},
	ModeLiveBroadcast: {
		ModeIdle: true,
	},
}

// CanTransition reports whether a room may move from one mode to another.
func CanTransition(from, to Mode) bool {
	return legalTransitions[from][to]
}

// TransportObserver receives the outcome of every relay call.
type TransportObserver func(operation string, err error, elapsed time.Duration)

// controller performs the relay side effects of mode transitions. Every
// multi-leg operation is all-or-nothing: on failure the legs touched so far
// are restored before the error is returned.
type controller struct {
	transport Transport
	timeout   time.Duration
	observe   TransportObserver
	log       zerolog.Logger
}

func newController(transport Transport, timeout time.Duration, observe TransportObserver, log zerolog.Logger) *controller {
	if observe == nil {
		observe = func(string, error, time.Duration) {}
	}
	return &controller{
		transport: transport,
		timeout:   timeout,
		observe:   observe,
		log:       log.With().Str("component", "transition-controller").Logger(),
	}
}

func (c *controller) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(callCtx)
	c.observe(op, err, time.Since(start))
	return err
}

func (c *controller) connectPublisher(ctx context.Context, roomID, identity, displayName, deviceRef string) (Credential, error) {
	var cred Credential
	err := c.call(ctx, "connect_publisher", func(ctx context.Context) error {
		var err error
		cred, err = c.transport.ConnectAsPublisher(ctx, roomID, identity, displayName, deviceRef)
		return err
	})
	cred.Identity, cred.DisplayName, cred.Role, cred.DeviceRef = identity, displayName, RolePublisher, deviceRef
	return cred, err
}

func (c *controller) connectListener(ctx context.Context, roomID, identity, displayName string) (Credential, error) {
	var cred Credential
	err := c.call(ctx, "connect_listener", func(ctx context.Context) error {
		var err error
		cred, err = c.transport.ConnectAsListener(ctx, roomID, identity, displayName)
		return err
	})
	cred.Identity, cred.DisplayName, cred.Role = identity, displayName, RoleListener
	return cred, err
}

func (c *controller) disconnect(ctx context.Context, roomID, identity string) error {
	return c.call(ctx, "disconnect", func(ctx context.Context) error {
		return c.transport.Disconnect(ctx, roomID, identity)
	})
}

// enterLive connects the owner as publisher and every present non-owner as a
// listener. On failure all legs opened here are closed again.
func (c *controller) enterLive(ctx context.Context, roomID string, owner presence.Entry, deviceRef string, listeners []presence.Entry) (map[string]Credential, error) {
	legs := make(map[string]Credential, len(listeners)+1)

	pub, err := c.connectPublisher(ctx, roomID, owner.Identity, owner.DisplayMeta.DisplayName, deviceRef)
	if err != nil {
		return nil, err
	}
	legs[owner.Identity] = pub

	for _, listener := range listeners {
		cred, err := c.connectListener(ctx, roomID, listener.Identity, listener.DisplayMeta.DisplayName)
		if err != nil {
			c.log.Warn().
				Err(err).
				Str("room_id", roomID).
				Str("identity", listener.Identity).
				Int("connected", len(legs)).
				Msg("listener connect failed, rolling back live start")
			c.release(ctx, roomID, legs)
			return nil, err
		}
		legs[listener.Identity] = cred
	}
	return legs, nil
}

// release closes legs best-effort; used only for rollback.
func (c *controller) release(ctx context.Context, roomID string, legs map[string]Credential) {
	for _, identity := range sortedIdentities(legs) {
		if err := c.disconnect(ctx, roomID, identity); err != nil {
			c.log.Error().
				Err(err).
				Str("room_id", roomID).
				Str("identity", identity).
				Msg("rollback disconnect failed")
		}
	}
}

// exitLive disconnects every leg, listeners first and the publisher last.
// When a disconnect fails the legs already closed are reconnected, the
// returned map holds the legs that are open afterwards and reissued reports
// whether any leg was closed and issued again.
func (c *controller) exitLive(ctx context.Context, roomID string, legs map[string]Credential) (open map[string]Credential, reissued bool, err error) {
	order := sortedIdentities(legs)
	sort.SliceStable(order, func(i, j int) bool {
		return legs[order[i]].Role == RoleListener && legs[order[j]].Role == RolePublisher
	})

	closed := make([]Credential, 0, len(order))
	for _, identity := range order {
		if err := c.disconnect(ctx, roomID, identity); err != nil {
			c.log.Warn().
				Err(err).
				Str("room_id", roomID).
				Str("identity", identity).
				Int("disconnected", len(closed)).
				Msg("disconnect failed, restoring live legs")
			return c.restore(ctx, roomID, legs, closed), len(closed) > 0, err
		}
		closed = append(closed, legs[identity])
	}

	if closer, ok := c.transport.(RelayCloser); ok {
		err := c.call(ctx, "close_relay", func(ctx context.Context) error {
			return closer.CloseRelay(ctx, roomID)
		})
		if err != nil {
			c.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to close relay room")
		}
	}
	return map[string]Credential{}, false, nil
}

func (c *controller) restore(ctx context.Context, roomID string, legs map[string]Credential, closed []Credential) map[string]Credential {
	open := make(map[string]Credential, len(legs))
	for identity, cred := range legs {
		open[identity] = cred
	}

	var restoreErr error
	for _, prev := range closed {
		var (
			cred Credential
			err  error
		)
		if prev.Role == RolePublisher {
			cred, err = c.connectPublisher(ctx, roomID, prev.Identity, prev.DisplayName, prev.DeviceRef)
		} else {
			cred, err = c.connectListener(ctx, roomID, prev.Identity, prev.DisplayName)
		}
		if err != nil {
			restoreErr = errors.Join(restoreErr, err)
			delete(open, prev.Identity)
			continue
		}
		open[prev.Identity] = cred
	}
	if restoreErr != nil {
		c.log.Error().Err(restoreErr).Str("room_id", roomID).Msg("failed to restore some live legs")
	}
	return open
}

func sortedIdentities(legs map[string]Credential) []string {
	ids := make([]string, 0, len(legs))
	for identity := range legs {
		ids = append(ids, identity)
	}
	sort.Strings(ids)
	return ids
}
