package main

import (
	"github.com/spf13/cobra"

	roomreq "jan-server/services/listen-api/internal/interfaces/httpserver/requests/room"
)

var joinCmd = &cobra.Command{
	Use:   "join [room-id]",
	Short: "Join a room as the current user",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

var leaveCmd = &cobra.Command{
	Use:   "leave [room-id]",
	Short: "Leave a room",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeave,
}

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat [room-id]",
	Short: "Refresh presence in a room",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeartbeat,
}

var avatarURL string

func init() {
	joinCmd.Flags().StringVar(&avatarURL, "avatar", "", "Avatar URL shown to other listeners")
}

func runJoin(cmd *cobra.Command, args []string) error {
	resp, err := newClient().Join(cmd.Context(), args[0], roomreq.JoinRequest{DisplayName: userName, AvatarURL: avatarURL})
	if err != nil {
		return err
	}
	return printMutation(resp)
}

func runLeave(cmd *cobra.Command, args []string) error {
	resp, err := newClient().Leave(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printMutation(resp)
}

func runHeartbeat(cmd *cobra.Command, args []string) error {
	resp, err := newClient().Heartbeat(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printMutation(resp)
}
