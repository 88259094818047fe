package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/config"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/discovery"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/transport"
)

// portsCmd lists the serial and MIDI ports the bridge can open
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial and MIDI ports",
	Long: `List the serial ports the grid board or GUI can be attached to, and the
MIDI ports the DAW remote script can be reached through.

MIDI port names are matched by substring in the daw.in and daw.out
configuration values.`,
	RunE: runPorts,
}

// discoverCmd browses for running bridges
var (
	discoverTimeout int
	outputFormat    string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find bridge GUI endpoints on the network",
	Long: `Browse mDNS/DNS-SD for bridges advertising a GUI endpoint.

Every bridge running with gui.advertise enabled is listed with the
WebSocket URL a GUI should connect to.`,
	Example: `  # Browse for 5 seconds (default)
  pushclone discover

  # JSON output for scripts
  pushclone discover --format json --timeout 2`,
	RunE: runDiscover,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFile()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFile()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", int(discovery.DefaultScanTimeout/time.Second), "Browse timeout in seconds")
	discoverCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathCmd)

	rootCmd.AddCommand(portsCmd, discoverCmd, configCmd)
}

func configFile() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

func runPorts(cmd *cobra.Command, args []string) error {
	serials, err := transport.SerialPorts()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	fmt.Println("Serial ports:")
	if len(serials) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range serials {
		fmt.Printf("  %s\n", p)
	}

	ins, outs := transport.MIDIPorts()
	fmt.Println("\nMIDI inputs:")
	if len(ins) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range ins {
		fmt.Printf("  %s\n", p)
	}
	fmt.Println("\nMIDI outputs:")
	if len(outs) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range outs {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if outputFormat != "json" {
		fmt.Printf("Browsing for bridges (timeout: %ds)...\n\n", discoverTimeout)
	}

	bridges, err := discovery.ScanForBridges(time.Duration(discoverTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(bridges)
	case "compact":
		for _, b := range bridges {
			fmt.Printf("%s\t%s\n", b.Instance, b.URL())
		}
		return nil
	}

	if len(bridges) == 0 {
		fmt.Println("No bridges found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the bridge runs with gui.mode websocket and gui.advertise on")
		fmt.Println("  - Check that multicast traffic is allowed on this network")
		fmt.Println("  - Try increasing --timeout")
		return nil
	}
	for i, b := range bridges {
		fmt.Printf("[%d] %s\n", i+1, b.Instance)
		fmt.Printf("    URL:     %s\n", b.URL())
		fmt.Printf("    Host:    %s (%s)\n", b.Hostname, b.IP)
		if b.Version != "" {
			fmt.Printf("    Version: %s\n", b.Version)
		}
		fmt.Println()
	}
	return nil
}
