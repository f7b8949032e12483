// ABOUTME: Entry point for the chorus demo player
// ABOUTME: Parses CLI flags, opens the device, and plays each source in turn
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chorus-audio/chorus-go/internal/ui"
	"github.com/chorus-audio/chorus-go/pkg/output"
)

var (
	backend    = flag.String("backend", "", "Playback backend (oto, malgo; default oto)")
	deviceName = flag.String("device", "", "Output device name (default device if empty)")
	stream     = flag.Bool("stream", false, "Stream each source instead of preloading it")
	volume     = flag.Float64("volume", 1.0, "Playback gain (0.0-1.0)")
	pitch      = flag.Float64("pitch", 1.0, "Playback pitch multiplier")
	loop       = flag.Bool("loop", false, "Loop each sound (preloaded mode only)")
	spatial    = flag.Bool("spatial", false, "Play as positioned 3D sounds")
	minDist    = flag.Float64("min-dist", 20, "Distance where attenuation starts (3D mode)")
	maxDist    = flag.Float64("max-dist", 2000, "Distance where the sound goes silent (3D mode)")
	logFile    = flag.String("log-file", "chorus-play.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatalf("usage: chorus-play [flags] <source file> ...")
	}
	sources := flag.Args()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	dev, err := output.New(output.Config{Backend: *backend})
	if err != nil {
		log.Fatalf("Failed to create output device: %v", err)
	}
	if err := dev.Init(*deviceName); err != nil {
		log.Fatalf("Failed to open output device: %v", err)
	}
	defer dev.Deinit()

	// The listener starts at the origin looking down +y
	if err := dev.UpdateListener(output.Vec3{}, output.Vec3{0, 1, 0}, output.Vec3{0, 0, 1}); err != nil {
		log.Fatalf("Failed to place listener: %v", err)
	}

	// TUI setup
	var tuiProg *tea.Program
	ctrl := ui.NewControl()
	if useTUI {
		tuiProg, err = ui.Run(ctrl)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go tuiProg.Run()
	}
	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	for i, source := range sources {
		if !playOne(dev, source, len(sources)-i-1, ctrl, updateTUI) {
			break
		}
	}

	if tuiProg != nil {
		tuiProg.Quit()
	}
	log.Printf("Player stopped")
}

// playOne plays a single source to completion. Returns false when the
// user quit.
func playOne(dev *output.Device, source string, remaining int, ctrl *ui.Control, updateTUI func(ui.StatusMsg)) bool {
	pos := output.Vec3{0, float32(*minDist), 0}
	snd, mode, err := play(dev, source, pos)
	if err != nil {
		log.Printf("Failed to play %s: %v", source, err)
		return true
	}
	defer snd.Close()
	log.Printf("Playing %s (%s)", source, mode)

	playing := true
	status := ui.StatusMsg{
		Source:  filepath.Base(source),
		Mode:    mode,
		Playing: &playing,
		Queued:  &remaining,
	}
	if *spatial {
		p := [3]float32(pos)
		status.Position = &p
	}
	updateTUI(status)

	return runSound(snd, pos, ctrl, updateTUI)
}

// play starts the source in the requested mode and names the mode for
// the UI
func play(dev *output.Device, source string, pos output.Vec3) (output.Sound, string, error) {
	gain := float32(*volume)
	pitchF := float32(*pitch)

	if *spatial {
		min, max := float32(*minDist), float32(*maxDist)
		if *stream {
			s, err := dev.StreamSound3D(source, pos, gain, pitchF, min, max)
			return s, "3D stream", err
		}
		s, err := dev.PlaySound3D(source, pos, gain, pitchF, min, max, *loop)
		return s, "3D one-shot", err
	}
	if *stream {
		s, err := dev.StreamSound(source, gain, pitchF)
		return s, "stream", err
	}
	s, err := dev.PlaySound(source, gain, pitchF, *loop)
	return s, "one-shot", err
}

// runSound drives one sound until it finishes or the user skips or
// quits. Returns false when the player should exit.
func runSound(snd output.Sound, pos output.Vec3, ctrl *ui.Control, updateTUI func(ui.StatusMsg)) bool {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-sigChan:
			log.Printf("Shutdown signal received")
			return false
		case <-ctrl.Quit:
			log.Printf("Received quit signal from TUI")
			return false
		case <-ctrl.Stops:
			log.Printf("Skip requested")
			if err := snd.Stop(); err != nil {
				log.Printf("Stop failed: %v", err)
			}
			return true
		case mv := <-ctrl.Moves:
			pos[0] += mv.DX
			pos[1] += mv.DY
			if err := snd.Update(pos); err != nil {
				log.Printf("Position update failed: %v", err)
			}
			p := [3]float32(pos)
			updateTUI(ui.StatusMsg{Position: &p})
		case <-ticker.C:
			playing, err := snd.IsPlaying()
			if err != nil {
				log.Printf("State query failed: %v", err)
				return true
			}
			if !playing {
				log.Printf("Playback finished after %s", time.Since(start).Round(time.Millisecond))
				updateTUI(ui.StatusMsg{Done: true})
				return true
			}
			updateTUI(ui.StatusMsg{Playing: &playing, Elapsed: time.Since(start)})
		}
	}
}
