package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	roomreq "jan-server/services/listen-api/internal/interfaces/httpserver/requests/room"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Shared queue operations",
	Long: `Add, remove, and advance tracks on a room's shared queue.

Examples:
  listen-cli queue add friday-mix --ref spotify:track:1 --title "Intro" --duration 212
  listen-cli queue remove friday-mix 01J9Z...
  listen-cli queue start friday-mix
  listen-cli queue skip friday-mix
  listen-cli queue skip friday-mix --force`,
}

var queueAddCmd = &cobra.Command{
	Use:   "add [room-id]",
	Short: "Append a track to the queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueAdd,
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove [room-id] [entry-id]",
	Short: "Remove a queued entry",
	Args:  cobra.ExactArgs(2),
	RunE:  runQueueRemove,
}

var queueSkipCmd = &cobra.Command{
	Use:   "skip [room-id]",
	Short: "Skip the current track (owner only)",
	Long: `Skip the current track. The track playing when the command starts is
sent along, so a repeated skip never advances past a track nobody heard.
Use --force to skip whatever is playing when the request arrives.`,
	Args: cobra.ExactArgs(1),
	RunE:  runQueueSkip,
}

var queueStartCmd = &cobra.Command{
	Use:   "start [room-id]",
	Short: "Start queued playback (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueStart,
}

var playCmd = &cobra.Command{
	Use:   "play [room-id]",
	Short: "Resume queued playback (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetPlaying(cmd, args[0], true)
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause [room-id]",
	Short: "Pause queued playback (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetPlaying(cmd, args[0], false)
	},
}

var (
	trackRef      string
	trackTitle    string
	trackArtist   string
	trackDuration float64
	skipEntryID   string
	skipStartedAt int64
	skipForce     bool
)

func init() {
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueRemoveCmd)
	queueCmd.AddCommand(queueSkipCmd)
	queueCmd.AddCommand(queueStartCmd)

	queueAddCmd.Flags().StringVar(&trackRef, "ref", "", "Track reference")
	queueAddCmd.Flags().StringVar(&trackTitle, "title", "", "Track title")
	queueAddCmd.Flags().StringVar(&trackArtist, "artist", "", "Track artist")
	queueAddCmd.Flags().Float64Var(&trackDuration, "duration", 0, "Track duration in seconds")
	_ = queueAddCmd.MarkFlagRequired("ref")
	_ = queueAddCmd.MarkFlagRequired("title")
	_ = queueAddCmd.MarkFlagRequired("duration")

	queueSkipCmd.Flags().StringVar(&skipEntryID, "entry", "", "Only skip if this entry is still playing")
	queueSkipCmd.Flags().Int64Var(&skipStartedAt, "started-at", 0, "Start time (epoch ms) of the entry to skip")
	queueSkipCmd.Flags().BoolVar(&skipForce, "force", false, "Skip unconditionally")
	queueSkipCmd.MarkFlagsRequiredTogether("entry", "started-at")
	queueSkipCmd.MarkFlagsMutuallyExclusive("entry", "force")
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	resp, err := newClient().Enqueue(cmd.Context(), args[0], roomreq.EnqueueRequest{
		TrackRef:        trackRef,
		Title:           trackTitle,
		Artist:          trackArtist,
		DurationSeconds: trackDuration,
	})
	if err != nil {
		return err
	}
	return printMutation(resp)
}

func runQueueRemove(cmd *cobra.Command, args []string) error {
	resp, err := newClient().RemoveEntry(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return printMutation(resp)
}

func runQueueSkip(cmd *cobra.Command, args []string) error {
	client := newClient()
	req, err := skipRequest(cmd.Context(), client, args[0])
	if err != nil {
		return err
	}
	resp, err := client.Skip(cmd.Context(), args[0], req)
	if err != nil {
		return err
	}
	return printMutation(resp)
}

// skipRequest pins the skip to the track playing now unless --force or an
// explicit marker was given.
func skipRequest(ctx context.Context, client *apiClient, roomID string) (roomreq.SkipRequest, error) {
	switch {
	case skipForce:
		return roomreq.SkipRequest{}, nil
	case skipEntryID != "":
		return roomreq.SkipRequest{EntryID: skipEntryID, StartedAtEpochMs: skipStartedAt}, nil
	}

	snap, err := client.GetRoom(ctx, roomID)
	if err != nil {
		return roomreq.SkipRequest{}, err
	}
	marker := snap.Marker()
	if marker == nil {
		return roomreq.SkipRequest{}, fmt.Errorf("nothing is playing in room %s", roomID)
	}
	return roomreq.SkipRequest{EntryID: marker.EntryID, StartedAtEpochMs: marker.StartedAtEpochMs}, nil
}

func runQueueStart(cmd *cobra.Command, args []string) error {
	resp, err := newClient().StartQueue(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printMutation(resp)
}

func runSetPlaying(cmd *cobra.Command, roomID string, playing bool) error {
	resp, err := newClient().SetPlaying(cmd.Context(), roomID, playing)
	if err != nil {
		return err
	}
	return printMutation(resp)
}
