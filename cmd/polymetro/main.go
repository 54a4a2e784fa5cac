// Command polymetro is a polyrhythmic metronome for the terminal
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/polymetro/audio"
	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/engine"
	"github.com/lixenwraith/polymetro/export"
	"github.com/lixenwraith/polymetro/preset"
	"github.com/lixenwraith/polymetro/service"
	"github.com/lixenwraith/polymetro/status"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			core.HandleCrash(r)
		}
	}()

	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "polymetro: %v\n", err)
		os.Exit(2)
	}

	logFile := setupLogging(o.debug)
	if err := run(o); err != nil {
		if logFile != nil {
			log.Printf("exit: %v", err)
			logFile.Close()
		}
		fmt.Fprintf(os.Stderr, "polymetro: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		logFile.Close()
	}
}

func run(o *options) error {
	p, err := o.buildPreset()
	if err != nil {
		return err
	}
	cfg := o.sessionConfig(p)

	if o.export != "" {
		opts := export.DefaultOptions()
		opts.Cycles = o.cycles
		sum, err := export.WriteFile(o.export, cfg, p.PolyrhythmConfigs(), opts)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s: %d tracks, %d notes, %.2fs\n", o.export, sum.Tracks, sum.Notes, sum.Duration)
		return nil
	}

	reg := status.NewRegistry()
	hub := service.NewHub()
	if err := hub.Register(status.NewService()); err != nil {
		return err
	}
	if err := hub.Register(audio.NewService()); err != nil {
		return err
	}
	err = hub.InitAll(map[string][]any{
		"status": {reg},
		"audio":  {audio.LoadAudioConfig(), reg},
	})
	if err != nil {
		return err
	}
	if err := hub.StartAll(); err != nil {
		return err
	}
	defer hub.StopAll()

	sound := service.MustGet[*audio.AudioService](hub, "audio")
	session, err := engine.NewSession(cfg, sound.Renderer(), engine.NewIntervalTicker(cfg.TickInterval), reg)
	if err != nil {
		return err
	}
	session.SetSound(sound.Click())
	if _, err := p.Populate(session); err != nil {
		return err
	}
	defer session.Stop()

	if o.headless {
		err = runHeadless(session, sound.Backend())
	} else {
		err = runUI(session, reg, o.save)
	}
	if err != nil {
		return err
	}

	if o.save != "" {
		if err := preset.FromSession(session).Save(o.save); err != nil {
			return err
		}
		log.Printf("saved preset %s", o.save)
	}
	return nil
}

// runHeadless plays until SIGINT or SIGTERM
func runHeadless(s *engine.Session, backend audio.BackendType) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cycles := 0
	s.OnBeatAdvance(func(id core.TrackID, beat int) {
		if id.IsReference() && beat == 0 {
			cycles++
			log.Printf("cycle %d scheduled", cycles)
		}
	})
	if err := s.Start(ctx); err != nil {
		return err
	}

	st := s.Snapshot()
	fmt.Printf("playing %.1f BPM, %d beats, %d polyrhythms on %s; Ctrl-C to stop\n",
		st.BPM, st.Reference.Beats, len(st.Polyrhythms), backend)

	<-ctx.Done()
	s.Stop()
	return nil
}
