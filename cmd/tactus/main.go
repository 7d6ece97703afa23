package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tactus/debug"
	"tactus/midi"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var debugLog bool

	cmd := &cobra.Command{
		Use:   "tactus",
		Short: "Tick-accurate generative music player",
		Long: `tactus plays tick-indexed musical structures over MIDI devices with
groove timing, legato handling, clock sync for external gear, and
controller LFO automation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debugLog {
				if err := debug.Enable(); err != nil {
					return fmt.Errorf("enable debug log: %w", err)
				}
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "write a debug log to "+debug.Path())

	cmd.AddCommand(newPortsCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newPlayCommand())
	return cmd
}

func newPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List available MIDI output ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports := midi.Driver().Ports()
			if len(ports) == 0 {
				fmt.Println("No MIDI output ports found")
				return nil
			}
			fmt.Println("MIDI output ports:")
			for i, p := range ports {
				fmt.Printf("  %d: %s\n", i, p)
			}
			return nil
		},
	}
}

const exampleConfig = `# tactus session configuration
devices:
  - name: synth
    ports: ["FLUID Synth", "Midi Through"]
    clockSync: false

instruments:
  lead:  {device: synth, channel: 0, program: 81}
  bass:  {device: synth, channel: 1, program: 38}
  drums: {device: synth, channel: 9}

bpm: 120
groove: "110,90"
transposition: 0
preWaitTicks: 4
postWaitTicks: 8

lfos:
  - waveform: sine
    rotationUnit: beat
    speed: 0.25
    minAmplitude: 0
    maxAmplitude: 127
    maxValue: 100
    controller: modulationWheel
    device: synth
    channel: 0
`

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init <path>",
		Short: "Write an example session configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}
			if err := os.WriteFile(args[0], []byte(exampleConfig), 0644); err != nil {
				return err
			}
			fmt.Println("Wrote", args[0])
			return nil
		},
	}
}
