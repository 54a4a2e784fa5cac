package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// resampleQuality trades CPU for fidelity in beep.Resample; samples are decoded once
const resampleQuality = 4

// LoadWAV decodes a WAV file into a mono buffer at sampleRate
func LoadWAV(path string, sampleRate int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sample: %w", err)
	}
	defer f.Close()
	return DecodeWAV(f, sampleRate)
}

// DecodeWAV decodes WAV data into a mono buffer at sampleRate
// Channels are averaged; other sample rates are resampled
func DecodeWAV(r io.Reader, sampleRate int) ([]float64, error) {
	stream, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSample, err)
	}
	defer stream.Close()

	var src beep.Streamer = stream
	target := beep.SampleRate(sampleRate)
	if format.SampleRate != target {
		src = beep.Resample(resampleQuality, format.SampleRate, target, stream)
	}

	var out []float64
	chunk := make([][2]float64, 512)
	for {
		n, ok := src.Stream(chunk)
		for i := 0; i < n; i++ {
			out = append(out, (chunk[i][0]+chunk[i][1])/2)
		}
		if !ok {
			break
		}
	}
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSample, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidSample)
	}
	return out, nil
}
