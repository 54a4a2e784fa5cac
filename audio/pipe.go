package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/parameter"
)

// PipeRenderer streams the mixer to a system audio tool over stdin, or to /dev/dsp on OSS
// The clock counts frames written, so it leads the speaker by the tool's fixed latency
type PipeRenderer struct {
	*MixerRenderer

	backend *BackendConfig
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	ossFile *os.File // For direct OSS writes

	output   io.Writer
	stopChan chan struct{}
	errChan  chan error

	running atomic.Bool
	failed  atomic.Bool

	wg sync.WaitGroup
}

// NewPipeRenderer creates a renderer for a detected backend
func NewPipeRenderer(mixer *Mixer, bank *SoundBank, backend *BackendConfig) *PipeRenderer {
	return &PipeRenderer{
		MixerRenderer: NewMixerRenderer(mixer, bank),
		backend:       backend,
		stopChan:      make(chan struct{}),
		errChan:       make(chan error, 1),
	}
}

// Open launches the backend process and the render loop
func (r *PipeRenderer) Open() error {
	if r.running.Load() {
		return fmt.Errorf("pipe renderer already running")
	}

	if r.backend.Type == BackendOSS {
		f, err := os.OpenFile(r.backend.Path, os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("open %s: %w", r.backend.Path, err)
		}
		r.ossFile = f
		r.output = f
	} else {
		cmd := exec.Command(r.backend.Path, r.backend.Args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("%s stdin: %w", r.backend.Name, err)
		}
		if err := cmd.Start(); err != nil {
			stdin.Close()
			return fmt.Errorf("start %s: %w", r.backend.Name, err)
		}
		r.cmd = cmd
		r.stdin = stdin
		r.output = stdin

		r.wg.Add(1)
		core.Go(r.monitorProcess)
	}

	r.running.Store(true)
	r.wg.Add(1)
	core.Go(r.loop)
	return nil
}

// Resume reports a failed pipe so the caller can fall back
func (r *PipeRenderer) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.failed.Load() {
		return ErrPipeClosed
	}
	if !r.running.Load() {
		return r.Open()
	}
	return nil
}

// Errors delivers the first write failure
func (r *PipeRenderer) Errors() <-chan error {
	return r.errChan
}

// Failed reports whether the backend died
func (r *PipeRenderer) Failed() bool {
	return r.failed.Load()
}

// Backend returns the backend description
func (r *PipeRenderer) Backend() *BackendConfig {
	return r.backend
}

// monitorProcess watches for subprocess exit
func (r *PipeRenderer) monitorProcess() {
	defer r.wg.Done()

	err := r.cmd.Wait()
	if err != nil && r.running.Load() {
		r.failed.Store(true)
	}
}

// loop renders one buffer per tick and writes it to the backend
func (r *PipeRenderer) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(parameter.AudioBufferDuration)
	defer ticker.Stop()

	samples := r.mixer.sampleRate * int(parameter.AudioBufferDuration) / int(time.Second)
	buf := make([]float64, samples)
	out := make([]byte, samples*parameter.AudioBytesPerFrame)

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.mixer.Render(buf)
			floatToBytes(buf, out)
			if _, err := r.output.Write(out); err != nil {
				r.failed.Store(true)
				select {
				case r.errChan <- fmt.Errorf("%w: %v", ErrPipeClosed, err):
				default:
				}
				return
			}
		}
	}
}

// Close terminates the loop and the backend
func (r *PipeRenderer) Close() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	r.mixer.Close()
	close(r.stopChan)

	if r.stdin != nil {
		r.stdin.Close()
	}
	if r.ossFile != nil {
		r.ossFile.Close()
	}
	if r.cmd != nil && r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}

	r.wg.Wait()
}
