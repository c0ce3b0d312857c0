package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jan-server/services/listen-api/internal/domain/playback"
	"jan-server/services/listen-api/internal/domain/room"
	roomreq "jan-server/services/listen-api/internal/interfaces/httpserver/requests/room"
)

var followCmd = &cobra.Command{
	Use:   "follow [room-id]",
	Short: "Join a room and keep a simulated player in sync",
	Long: `Join a room and follow its snapshots with a simulated player,
printing every correction the player makes (load, seek, play, pause,
relay connect/disconnect). The presence heartbeat is sent in the
background, end-of-track is reported with the observed marker, and the
room is left on exit.

Examples:
  listen-cli follow friday-mix --user bob
  listen-cli follow friday-mix --user bob --ws --threshold 2s`,
	Args: cobra.ExactArgs(1),
	RunE: runFollow,
}

var (
	followWS        bool
	followInterval  time.Duration
	followHeartbeat time.Duration
	followThreshold time.Duration
	followDebug     bool
)

func init() {
	followCmd.Flags().BoolVar(&followWS, "ws", false, "Stream snapshots over the websocket instead of polling")
	followCmd.Flags().DurationVar(&followInterval, "interval", time.Second, "Poll and reconcile interval")
	followCmd.Flags().DurationVar(&followHeartbeat, "heartbeat", 10*time.Second, "Presence heartbeat interval")
	followCmd.Flags().DurationVar(&followThreshold, "threshold", 0, "Drift tolerated before seeking (0 uses the room's threshold)")
	followCmd.Flags().BoolVar(&followDebug, "debug", false, "Log every reconcile")
}

func runFollow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := zerolog.InfoLevel
	if followDebug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()

	roomID := args[0]
	client := newClient()
	if _, err := client.Join(ctx, roomID, roomreq.JoinRequest{DisplayName: userName}); err != nil {
		return err
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if _, err := client.Leave(leaveCtx, roomID); err != nil {
			log.Warn().Err(err).Msg("failed to leave room")
		}
	}()

	player := newSimPlayer(time.Now)
	follower := playback.NewFollower(player, &logLeg{log: log}, playback.FollowerConfig{
		Threshold:   followThreshold,
		Credentials: client.TransportCredential,
	}, log)

	f := &follow{
		client:   client,
		roomID:   roomID,
		follower: follower,
		player:   player,
		log:      log,
	}

	snaps := make(chan *room.Snapshot, 8)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(snaps)
		if followWS {
			return streamSnapshots(gctx, client, roomID, snaps)
		}
		return pollSnapshots(gctx, client, roomID, followInterval, snaps)
	})
	g.Go(func() error {
		return f.run(gctx, snaps)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, errRoomClosed) {
		return nil
	}
	return err
}

var errRoomClosed = errors.New("room closed")

type follow struct {
	client   *apiClient
	roomID   string
	follower *playback.Follower
	player   *simPlayer
	log      zerolog.Logger

	last     *room.Snapshot
	reported *room.Marker
}

func (f *follow) run(ctx context.Context, snaps <-chan *room.Snapshot) error {
	heartbeat := time.NewTicker(followHeartbeat)
	defer heartbeat.Stop()
	reconcile := time.NewTicker(followInterval)
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-heartbeat.C:
			if _, err := f.client.Heartbeat(ctx, f.roomID); err != nil {
				var apiErr *apiError
				if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
					return errRoomClosed
				}
				f.log.Warn().Err(err).Msg("heartbeat failed")
			}

		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			if snap.Closed {
				f.log.Info().Str("room_id", f.roomID).Msg("room closed")
				return errRoomClosed
			}
			f.last = snap
			f.apply(ctx, snap)

		case <-reconcile.C:
			if f.last != nil {
				f.apply(ctx, f.last.At(f.follower.ServerNow()))
			}
		}

		if err := f.reportEnd(ctx); err != nil {
			f.log.Warn().Err(err).Msg("track-ended signal failed")
		}
	}
}

func (f *follow) apply(ctx context.Context, snap *room.Snapshot) {
	acts, err := f.follower.Apply(ctx, snap)
	if err != nil {
		f.log.Warn().Err(err).Uint64("version", snap.Version).Msg("reconcile failed")
		return
	}
	if !acts.Empty() {
		f.log.Info().
			Uint64("version", snap.Version).
			Str("mode", string(snap.Mode)).
			Msg(acts.String())
	}
}

// reportEnd sends track-ended once per marker when the local player reaches
// the end of the current track.
func (f *follow) reportEnd(ctx context.Context) error {
	if !f.player.Ended() {
		return nil
	}
	marker := f.follower.Marker()
	if marker == nil || (f.reported != nil && *f.reported == *marker) {
		return nil
	}
	f.reported = marker

	resp, err := f.client.TrackEnded(ctx, f.roomID, *marker)
	if err != nil {
		return err
	}
	f.log.Info().
		Str("entry_id", marker.EntryID).
		Bool("applied", resp.Applied).
		Msg("reported end of track")
	if resp.Applied && resp.Snapshot != nil {
		f.last = resp.Snapshot
		f.apply(ctx, resp.Snapshot)
	}
	return nil
}

func pollSnapshots(ctx context.Context, client *apiClient, roomID string, every time.Duration, out chan<- *room.Snapshot) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		snap, err := client.GetRoom(ctx, roomID)
		if err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
				return errRoomClosed
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		} else {
			select {
			case out <- snap:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func streamSnapshots(ctx context.Context, client *apiClient, roomID string, out chan<- *room.Snapshot) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, client.socketURL(roomID), client.headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (%d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var snap room.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errRoomClosed
			}
			return fmt.Errorf("websocket read failed: %w", err)
		}
		select {
		case out <- &snap:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
