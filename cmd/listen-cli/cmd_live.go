package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	roomreq "jan-server/services/listen-api/internal/interfaces/httpserver/requests/room"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Live broadcast control",
	Long: `Start and stop a live broadcast in a room. Starting returns a
publisher credential for the audio relay.

Examples:
  listen-cli live start friday-mix --title "Vinyl hour" --device turntable-1
  listen-cli live stop friday-mix`,
}

var liveStartCmd = &cobra.Command{
	Use:   "start [room-id]",
	Short: "Start a live broadcast (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runLiveStart,
}

var liveStopCmd = &cobra.Command{
	Use:   "stop [room-id]",
	Short: "Stop the live broadcast (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runLiveStop,
}

var (
	liveTitle  string
	liveDevice string
)

func init() {
	liveCmd.AddCommand(liveStartCmd)
	liveCmd.AddCommand(liveStopCmd)

	liveStartCmd.Flags().StringVar(&liveTitle, "title", "", "Broadcast title")
	liveStartCmd.Flags().StringVar(&liveDevice, "device", "", "Capture device reference")
	_ = liveStartCmd.MarkFlagRequired("title")
}

func runLiveStart(cmd *cobra.Command, args []string) error {
	resp, err := newClient().StartLive(cmd.Context(), args[0], roomreq.StartLiveRequest{
		Title:       liveTitle,
		DeviceRef:   liveDevice,
		DisplayName: userName,
	})
	if err != nil {
		return err
	}
	return printResult(resp, func(w io.Writer) {
		writeSnapshot(w, resp.Snapshot)
		if cred := resp.Credential; cred != nil {
			fmt.Fprintf(w, "Publisher credential for %s at %s (expires %s)\n",
				cred.Identity, cred.URL, time.Unix(cred.ExpiresAt, 0).Format(time.RFC3339))
			fmt.Fprintf(w, "  token: %s\n", cred.Token)
		}
	})
}

func runLiveStop(cmd *cobra.Command, args []string) error {
	resp, err := newClient().StopLive(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printMutation(resp)
}
