package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/ratjar110/gameshow-app/internal/logging"
	"github.com/ratjar110/gameshow-app/internal/server"
	"github.com/ratjar110/gameshow-app/internal/signaling"
)

func main() {
	logging.Init(slog.LevelInfo)

	hub := signaling.NewHub()
	go hub.Run()

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	slog.Info("signaling relay listening", "port", port)
	log.Fatal(http.ListenAndServe(":"+port, server.NewMux(hub)))
}
