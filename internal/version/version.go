package version

// Version is the current version of the gameshow CLI.
// Overridable at build time:
//
//	go build -ldflags="-X 'github.com/ratjar110/gameshow-app/internal/version.Version=v1.0.0'"
var Version = "dev"
