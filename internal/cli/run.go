package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ratjar110/gameshow-app/internal/client"
	"github.com/ratjar110/gameshow-app/internal/config"
	"github.com/ratjar110/gameshow-app/internal/ui"
)

// waitForRelay spins until the first JOIN is acknowledged, so the live
// view starts with a roster instead of a blank frame. The supervisor
// keeps retrying in the background if the relay is slow.
func waitForRelay(session *client.Session) {
	sp := ui.NewConnectionSpinner("Connecting to relay...")
	sp.Start()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if session.State().Snapshot().SelfID != "" {
			sp.Success("Connected")
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	sp.Stop()
}

// runRoom is the shared body of host and join: build the session, keep
// it running in the background, and hand the terminal to the live room
// view until the user quits.
func runRoom(roomID string, isHost bool) error {
	cfg, err := config.Load(config.Options{
		SignalURL:  flagSignalURL,
		Domain:     flagDomain,
		Dev:        flagDev,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
	})
	if err != nil {
		return client.NewError("load config", err)
	}

	name := flagName
	if name == "" && isHost {
		name = "Host"
	}

	session, err := client.New(client.Options{
		Config:      cfg,
		RoomID:      roomID,
		DisplayName: name,
		IsHost:      isHost,
	})
	if err != nil {
		return client.NewError("create session", err)
	}

	if isHost {
		ui.RenderRoomInfo(roomID, cfg.RoomLink(roomID))
		fmt.Println()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- session.Run(ctx)
	}()

	waitForRelay(session)

	var action ui.HostAction
	if isHost {
		action = session.SendHostEvent
	}
	model := ui.NewRoomModel(roomID, isHost, session.State().Snapshot, action)

	started := time.Now()
	// Inline mode keeps the room banner above the live view visible.
	program := tea.NewProgram(model)
	if _, err := program.Run(); err != nil {
		cancel()
		<-sessionDone
		return client.NewError("room view", err)
	}

	cancel()
	runErr := <-sessionDone

	snap := session.State().Snapshot()
	role := "Contestant"
	if isHost {
		role = "Host"
	}
	fmt.Println()
	ui.RenderSessionSummary("📺 Session Summary", ui.SessionSummary{
		Room:     roomID,
		Role:     role,
		Peers:    len(snap.Peers),
		Duration: fmt.Sprintf("%.0f seconds", time.Since(started).Seconds()),
	})

	return runErr
}
