package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/listen-api/internal/domain/room"
)

// simPlayer is a clock-driven stand-in for a media player. Its position
// advances with wall time while playing.
type simPlayer struct {
	clock func() time.Time

	mu      sync.Mutex
	track   *room.CurrentTrack
	playing bool
	base    float64
	anchor  time.Time
}

func newSimPlayer(clock func() time.Time) *simPlayer {
	if clock == nil {
		clock = time.Now
	}
	return &simPlayer{clock: clock}
}

func (p *simPlayer) Load(track room.CurrentTrack) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.track = &track
	p.playing = false
	p.base = 0
	p.anchor = p.clock()
	return nil
}

func (p *simPlayer) Unload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.track = nil
	p.playing = false
	p.base = 0
}

func (p *simPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

func (p *simPlayer) position() float64 {
	if p.track == nil {
		return 0
	}
	pos := p.base
	if p.playing {
		pos += p.clock().Sub(p.anchor).Seconds()
	}
	if pos > p.track.DurationSeconds {
		pos = p.track.DurationSeconds
	}
	return pos
}

func (p *simPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *simPlayer) SeekTo(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = seconds
	p.anchor = p.clock()
}

func (p *simPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing || p.track == nil {
		return
	}
	p.anchor = p.clock()
	p.playing = true
}

func (p *simPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.base = p.position()
	p.playing = false
}

// Ended reports whether a loaded track played to its end.
func (p *simPlayer) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track != nil && p.playing && p.position() >= p.track.DurationSeconds
}

// logLeg stands in for the relay client and only logs.
type logLeg struct {
	log zerolog.Logger
}

func (l *logLeg) Connect(_ context.Context, cred *room.Credential) error {
	l.log.Info().
		Str("identity", cred.Identity).
		Str("role", string(cred.Role)).
		Str("url", cred.URL).
		Time("expires_at", cred.ExpiresAt).
		Msg("relay leg connected")
	return nil
}

func (l *logLeg) Disconnect(context.Context) error {
	l.log.Info().Msg("relay leg disconnected")
	return nil
}
