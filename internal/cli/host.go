package cli

import (
	"github.com/spf13/cobra"
)

var hostCmd = &cobra.Command{
	Use:     "host <room-id>",
	Aliases: []string{"h"},
	Short:   "Host a gameshow room",
	Long: `Open a room as the host. The host controls the show: muting,
reveals, rounds, spotlight and scores. Contestants join with the room
id or the room link.

Examples:
  gameshow host friday-quiz
  gameshow host friday-quiz --name "Quiz Master"
  gameshow host friday-quiz --dev`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoom(args[0], true)
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)
}
