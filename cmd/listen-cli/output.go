package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"jan-server/services/listen-api/internal/domain/room"
	roomres "jan-server/services/listen-api/internal/interfaces/httpserver/responses/room"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(v any, human func(io.Writer)) error {
	if jsonOutput {
		return printJSON(os.Stdout, v)
	}
	human(os.Stdout)
	return nil
}

func printMutation(resp *roomres.MutationResponse) error {
	return printResult(resp, func(w io.Writer) {
		if !resp.Applied {
			fmt.Fprintln(w, "No change (signal no longer matched the room)")
		}
		writeSnapshot(w, resp.Snapshot)
	})
}

// writeSnapshot prints a short human summary of a room.
func writeSnapshot(w io.Writer, snap *room.Snapshot) {
	if snap == nil {
		return
	}
	fmt.Fprintf(w, "Room %s (%s) owner=%s mode=%s version=%d\n", snap.RoomID, snap.Name, snap.OwnerID, snap.Mode, snap.Version)
	if snap.Closed {
		fmt.Fprintln(w, "  closed")
		return
	}

	switch snap.Mode {
	case room.ModeQueuedPlayback:
		if t := snap.CurrentTrack; t != nil {
			state := "playing"
			if !snap.IsPlaying {
				state = "paused"
			}
			elapsed := time.Duration(t.ElapsedMs(snap.ServerTimeMs)) * time.Millisecond
			total := time.Duration(t.DurationMs()) * time.Millisecond
			fmt.Fprintf(w, "  now %s: %s [%s / %s]\n", state, trackLabel(t.Title, t.Artist), formatClock(elapsed), formatClock(total))
		}
	case room.ModeLiveBroadcast:
		if l := snap.LiveStream; l != nil {
			fmt.Fprintf(w, "  live: %s by %s since %s\n", l.Title, l.PublisherIdentity, time.UnixMilli(l.StartedAtEpochMs).Format(time.Kitchen))
		}
	}

	if len(snap.Queue) > 0 {
		fmt.Fprintln(w, "  queue:")
		for i, e := range snap.Queue {
			fmt.Fprintf(w, "    %d. %s %s (%s) added by %s\n", i+1, e.ID, trackLabel(e.Title, e.Artist),
				formatClock(time.Duration(e.DurationSeconds*float64(time.Second))), e.AddedByIdentity)
		}
	}

	if len(snap.Presence) > 0 {
		names := make([]string, 0, len(snap.Presence))
		for _, p := range snap.Presence {
			name := p.Identity
			if dn := p.DisplayMeta.DisplayName; dn != "" && dn != p.Identity {
				name = fmt.Sprintf("%s (%s)", dn, p.Identity)
			}
			names = append(names, name)
		}
		fmt.Fprintf(w, "  present: %s\n", strings.Join(names, ", "))
	}
}

func trackLabel(title, artist string) string {
	if artist == "" {
		return title
	}
	return artist + " - " + title
}

// formatClock renders d as m:ss.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
