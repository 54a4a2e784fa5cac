package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/engine"
	"github.com/lixenwraith/polymetro/parameter"
	"github.com/lixenwraith/polymetro/preset"
	"github.com/lixenwraith/polymetro/status"
)

// action is a user intent decoded from a key
type action int

const (
	actNone action = iota
	actQuit
	actToggle
	actTap
	actTempoUp
	actTempoDown
	actTempoUpCoarse
	actTempoDownCoarse
	actAdd
	actRemove
	actPrevTrack
	actNextTrack
	actPrevBeat
	actNextBeat
	actToggleBeat
	actMute
	actSolo
	actVolumeDown
	actVolumeUp
	actBeatsDown
	actBeatsUp
	actDivision
	actSave
)

type keyAction struct {
	act   action
	digit int // actDivision only
}

// translateKey maps a key event to an action
func translateKey(ev *tcell.EventKey) keyAction {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return keyAction{act: actQuit}
	case tcell.KeyUp:
		return keyAction{act: actPrevTrack}
	case tcell.KeyDown:
		return keyAction{act: actNextTrack}
	case tcell.KeyLeft:
		return keyAction{act: actPrevBeat}
	case tcell.KeyRight:
		return keyAction{act: actNextBeat}
	case tcell.KeyEnter:
		return keyAction{act: actToggleBeat}
	case tcell.KeyRune:
		return runeAction(ev.Rune())
	}
	return keyAction{}
}

func runeAction(r rune) keyAction {
	switch r {
	case 'q':
		return keyAction{act: actQuit}
	case ' ':
		return keyAction{act: actToggle}
	case 't', 'T':
		return keyAction{act: actTap}
	case '+', '=':
		return keyAction{act: actTempoUp}
	case '-', '_':
		return keyAction{act: actTempoDown}
	case '>':
		return keyAction{act: actTempoUpCoarse}
	case '<':
		return keyAction{act: actTempoDownCoarse}
	case 'a':
		return keyAction{act: actAdd}
	case 'd', 'x':
		return keyAction{act: actRemove}
	case 'k':
		return keyAction{act: actPrevTrack}
	case 'j':
		return keyAction{act: actNextTrack}
	case 'h':
		return keyAction{act: actPrevBeat}
	case 'l':
		return keyAction{act: actNextBeat}
	case 'm':
		return keyAction{act: actMute}
	case 's':
		return keyAction{act: actSolo}
	case 'v':
		return keyAction{act: actVolumeDown}
	case 'V':
		return keyAction{act: actVolumeUp}
	case '[':
		return keyAction{act: actBeatsDown}
	case ']':
		return keyAction{act: actBeatsUp}
	case 'w':
		return keyAction{act: actSave}
	}
	if r >= '1' && r <= '9' {
		return keyAction{act: actDivision, digit: int(r - '0')}
	}
	return keyAction{}
}

// controller holds launcher selection state and applies actions to the session
type controller struct {
	session  *engine.Session
	savePath string

	selected int // 0 is the reference, n is the nth polyrhythm
	cursor   int
	message  string

	cycles atomic.Int64
}

func newController(s *engine.Session, savePath string) *controller {
	if savePath == "" {
		savePath = parameter.DefaultPresetPath
	}
	c := &controller{session: s, savePath: savePath}
	s.OnBeatAdvance(func(id core.TrackID, beat int) {
		if id.IsReference() && beat == 0 {
			c.cycles.Add(1)
		}
	})
	return c
}

// track returns the selected track, clamping the selection and cursor first
func (c *controller) track(st engine.State) engine.TrackState {
	if c.selected > len(st.Polyrhythms) {
		c.selected = len(st.Polyrhythms)
	}
	if c.selected < 0 {
		c.selected = 0
	}
	t := st.Reference
	if c.selected > 0 {
		t = st.Polyrhythms[c.selected-1]
	}
	if c.cursor >= t.Beats {
		c.cursor = t.Beats - 1
	}
	if c.cursor < 0 {
		c.cursor = 0
	}
	return t
}

func (c *controller) report(err error) {
	if err != nil {
		c.message = err.Error()
	}
}

func (c *controller) nudge(delta float64) {
	bpm, err := c.session.AdjustTempo(delta)
	if err != nil {
		c.report(err)
		return
	}
	c.message = fmt.Sprintf("tempo %.0f BPM", bpm)
}

// apply performs one action, returns true when the launcher should exit
func (c *controller) apply(ka keyAction) bool {
	st := c.session.Snapshot()
	t := c.track(st)

	switch ka.act {
	case actQuit:
		return true

	case actToggle:
		if st.Playing {
			c.session.Stop()
			c.cycles.Store(0)
			c.message = "stopped"
		} else if err := c.session.Start(context.Background()); err != nil {
			c.report(err)
		} else {
			c.message = "playing"
		}

	case actTap:
		if bpm, ok := c.session.Tap(); ok {
			c.message = fmt.Sprintf("tap tempo %.0f BPM", bpm)
		} else {
			c.message = fmt.Sprintf("tap %d", c.session.TapCount())
		}

	case actTempoUp:
		c.nudge(parameter.TempoNudge)
	case actTempoDown:
		c.nudge(-parameter.TempoNudge)
	case actTempoUpCoarse:
		c.nudge(parameter.TempoNudgeCoarse)
	case actTempoDownCoarse:
		c.nudge(-parameter.TempoNudgeCoarse)

	case actAdd:
		id, err := c.session.AddPolyrhythm(parameter.DefaultPolyrhythmRatio)
		if err != nil {
			c.report(err)
			break
		}
		c.selected = len(st.Polyrhythms) + 1
		c.cursor = 0
		c.message = "added " + id.String()

	case actRemove:
		if t.ID.IsReference() {
			c.message = "reference track cannot be removed"
			break
		}
		if err := c.session.RemovePolyrhythm(t.ID); err != nil {
			c.report(err)
			break
		}
		c.selected--
		c.message = "removed " + t.ID.String()

	case actPrevTrack:
		c.selected--
		c.cursor = 0
	case actNextTrack:
		c.selected++
		c.cursor = 0
	case actPrevBeat:
		c.cursor = (c.cursor - 1 + t.Beats) % t.Beats
	case actNextBeat:
		c.cursor = (c.cursor + 1) % t.Beats

	case actToggleBeat:
		muted, err := c.session.ToggleBeatMute(t.ID, c.cursor)
		if err != nil {
			c.report(err)
			break
		}
		state := "on"
		if muted {
			state = "muted"
		}
		c.message = fmt.Sprintf("%s beat %d %s", t.ID, c.cursor+1, state)

	case actMute:
		c.report(c.session.SetTrackMute(t.ID, !t.Muted))

	case actSolo:
		err := c.session.SetTrackSolo(t.ID, !t.Solo)
		if errors.Is(err, core.ErrSoloReference) {
			c.message = "solo applies to polyrhythms"
			break
		}
		c.report(err)

	case actVolumeDown, actVolumeUp:
		step := parameter.VolumeStep
		if ka.act == actVolumeDown {
			step = -step
		}
		v := math.Round((t.Volume+step)*10) / 10
		v = math.Max(0, math.Min(1, v))
		c.report(c.session.SetTrackVolume(t.ID, v))

	case actBeatsDown:
		c.report(c.session.SetBeatsPerCycle(st.Reference.Beats - 1))
	case actBeatsUp:
		c.report(c.session.SetBeatsPerCycle(st.Reference.Beats + 1))

	case actDivision:
		if t.ID.IsReference() {
			c.report(c.session.SetBeatsPerCycle(ka.digit))
		} else {
			c.report(c.session.SetRatio(t.ID, ka.digit))
		}

	case actSave:
		if err := preset.FromSession(c.session).Save(c.savePath); err != nil {
			c.report(err)
		} else {
			c.message = "saved " + c.savePath
		}
	}
	return false
}

var (
	styleTitle  = tcell.StyleDefault.Bold(true)
	styleDim    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleStatus = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleError  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
)

const helpLine = "space play/stop  t tap  +/- tempo  </> x10  a add  d remove  j/k track  h/l beat  enter mute beat  m mute  s solo  v/V vol  [/] beats  1-9 division  w save  q quit"

func drawText(scr tcell.Screen, x, y int, text string, style tcell.Style) int {
	w, _ := scr.Size()
	for _, r := range text {
		if x >= w {
			break
		}
		scr.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

// draw renders the full frame from a session snapshot
func (c *controller) draw(scr tcell.Screen, st engine.State, metrics []status.Metric) {
	scr.Clear()
	_, h := scr.Size()
	c.track(st)

	state := "stopped"
	if st.Playing {
		state = "playing"
	}
	header := fmt.Sprintf("polymetro  %s  %.1f BPM  %d beats  master %.1f  cycle %d",
		state, st.BPM, st.Reference.Beats, st.MasterVolume, c.cycles.Load())
	drawText(scr, 1, 0, header, styleTitle)

	row := 2
	tracks := append([]engine.TrackState{st.Reference}, st.Polyrhythms...)
	for i, t := range tracks {
		c.drawTrack(scr, row, t, i == c.selected)
		row++
	}

	if c.message != "" && row+1 < h {
		drawText(scr, 1, row+1, c.message, styleError)
	}

	var parts []string
	for _, m := range metrics {
		parts = append(parts, m.Key+"="+m.Value)
	}
	if h > 2 {
		drawText(scr, 1, h-2, strings.Join(parts, "  "), styleStatus)
	}
	drawText(scr, 1, h-1, helpLine, styleDim)
}

func (c *controller) drawTrack(scr tcell.Screen, y int, t engine.TrackState, selected bool) {
	color := tcell.ColorWhite
	label := fmt.Sprintf("ref   %2d", t.Beats)
	if !t.ID.IsReference() {
		color = tcell.NewHexColor(int32(parameter.ColorForID(int(t.ID))))
		label = fmt.Sprintf("%-5s %2d", t.ID, t.Beats)
	}
	base := tcell.StyleDefault.Foreground(color)
	if !t.Audible {
		base = base.Dim(true)
	}

	marker := " "
	if selected {
		marker = ">"
	}
	x := drawText(scr, 0, y, marker, styleTitle)
	x = drawText(scr, x, y, label, base) + 2

	for b := 0; b < t.Beats; b++ {
		glyph := parameter.GlyphBeat
		style := base
		switch {
		case t.MutedBeats[b]:
			glyph = parameter.GlyphMutedBeat
		case b == t.ActiveBeat:
			glyph = parameter.GlyphActiveBeat
			style = style.Bold(true)
		}
		if selected && b == c.cursor {
			style = style.Reverse(true)
		}
		scr.SetContent(x, y, glyph, nil, style)
		x += 2
	}

	flags := fmt.Sprintf(" vol %.1f", t.Volume)
	if t.Muted {
		flags += " M"
	}
	if t.Solo {
		flags += " S"
	}
	drawText(scr, x, y, flags, base)
}

// runUI drives the interactive launcher until the user quits
func runUI(s *engine.Session, reg *status.Registry, savePath string) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	core.SetCrashReset(screen.Fini)
	defer screen.Fini()

	c := newController(s, savePath)

	events := make(chan tcell.Event, parameter.EventBufferSize)
	core.Go(func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	})

	frame := time.NewTicker(parameter.FrameInterval)
	defer frame.Stop()

	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if c.apply(translateKey(ev)) {
					return nil
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case <-frame.C:
			c.draw(screen, s.Snapshot(), reg.Snapshot())
			screen.Show()
		}
	}
}
