package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ratjar110/gameshow-app/internal/ui"
	"github.com/ratjar110/gameshow-app/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "gameshow",
	Short:   "Live gameshow rooms over WebRTC, hosted or joined from the terminal",
	Long:    `Gameshow runs live quiz-show rooms where a host and contestants exchange audio and video directly over WebRTC. The relay server only brokers signaling; media flows peer to peer. Host a room to control mutes, reveals, scores and rounds, or join one as a contestant.`,
	Version: version.Version,
}

var (
	flagSignalURL string
	flagDomain    string
	flagDev       bool
	flagSTUN      string
	flagTURN      string
	flagTURNUser  string
	flagTURNPass  string
	flagName      string
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagSignalURL, "signal-url", "", "Explicit relay URL, bypasses endpoint fallback")
	pf.StringVarP(&flagDomain, "domain", "d", "", "Custom deployment domain")
	pf.BoolVar(&flagDev, "dev", false, "Try local relay endpoints first")
	pf.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	pf.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	pf.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	pf.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	pf.StringVarP(&flagName, "name", "n", "", "Display name shown to other participants")
}
