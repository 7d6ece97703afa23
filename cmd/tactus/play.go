package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tactus/config"
	"tactus/player"
	"tactus/song"
)

func newPlayCommand() *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "play <config.yaml>",
		Short: "Play the demo arrangement with the given session config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			sess, err := cfg.Build()
			if err != nil {
				return err
			}

			st, arr := demoSong()
			p, err := player.New(player.Options{
				Structure:     st,
				Arrangement:   arr,
				Devices:       sess.Devices,
				Channels:      sess.Channels,
				Groove:        sess.Groove,
				Transposition: sess.Transposition,
				MilliBPM:      sess.MilliBPM,
				PreWaitTicks:  sess.PreWaitTicks,
				PostWaitTicks: sess.PostWaitTicks,
				LFOs:          sess.LFOs,
			})
			if err != nil {
				return err
			}

			if err := p.Open(); err != nil {
				return err
			}
			defer p.Close()

			if headless {
				ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				fmt.Println("Playing... Ctrl+C to stop")
				return p.Play(ctx)
			}
			return runTUI(p)
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "play without the TUI")
	return cmd
}

// demoSong builds a small fixed arrangement so play works end to end.
// Real arrangements come from upstream generators.
func demoSong() (song.Structure, song.Arrangement) {
	st := song.Structure{TicksPerBeat: 4, TicksPerBar: 16, TotalTicks: 128}

	// Lead: a pentatonic line with legato glides, half a beat per note.
	scale := []int{60, 62, 64, 67, 69, 72, 69, 67}
	var lead song.Voice
	for i := 0; i < 16; i++ {
		lead = append(lead,
			song.Note(scale[i%len(scale)], 24000, 6, true),
			song.Pause(2))
	}

	// Bass: one root per bar, detached.
	roots := []int{36, 36, 43, 41}
	var bass song.Voice
	for i := 0; i < 8; i++ {
		bass = append(bass, song.Note(roots[i%len(roots)], 28000, 12, false), song.Pause(4))
	}

	// Drums: kick, snare and hats as independent voices on one track.
	var kick, snare, hats song.Voice
	for i := 0; i < 16; i++ {
		kick = append(kick, song.Note(36, 30000, 2, false), song.Pause(6))
	}
	for i := 0; i < 8; i++ {
		snare = append(snare, song.Pause(8), song.Note(38, 26000, 2, false), song.Pause(6))
	}
	for i := 0; i < 32; i++ {
		hats = append(hats, song.Note(42, 18000, 1, false), song.Pause(3))
	}

	arr := song.Arrangement{
		{Track: &song.Track{Type: song.TrackMelodic, Voices: []song.Voice{lead}}, Instrument: "lead"},
		{Track: &song.Track{Type: song.TrackMelodic, Voices: []song.Voice{bass}}, Instrument: "bass"},
		{Track: &song.Track{Type: song.TrackRhythmic, Voices: []song.Voice{kick, snare, hats}}, Instrument: "drums"},
	}
	return st, arr
}
