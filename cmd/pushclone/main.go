// Pushclone is the bridge between the grid board, the desktop GUI and the
// DAW's MIDI remote script.
//
// It forwards pad, fader and transport events from the hardware to the DAW
// as SysEx, mirrors DAW state back to the grid board LEDs and the GUI, and
// keeps every link alive with handshakes and keepalives.
//
// Usage:
//
//	pushclone [command] [flags]
//
// See 'pushclone --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Registers the RtMidi driver used by the DAW transport.
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Flags shared by every command
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "pushclone",
	Short: "Push clone bridge",
	Long: `Bridge between the grid board, the desktop GUI and the DAW.

The bridge talks to the grid board over serial, to the GUI over WebSocket
or serial, and to the DAW remote script over MIDI SysEx.`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pushclone %s\n", version.Full())
	},
}
