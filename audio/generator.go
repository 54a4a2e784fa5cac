package audio

import (
	"math"
	"math/rand"

	"github.com/viterin/vek"

	"github.com/lixenwraith/polymetro/parameter"
)

// Waveform types
const (
	waveSine = iota
	waveNoise
)

// floatBuffer is mono float64 samples at unity gain
type floatBuffer []float64

// oscillator generates raw waveform samples at sampleRate
func oscillator(waveType int, freq float64, samples, sampleRate int) floatBuffer {
	buf := make(floatBuffer, samples)
	phase := 0.0
	phaseInc := freq / float64(sampleRate)

	for i := 0; i < samples; i++ {
		switch waveType {
		case waveSine:
			buf[i] = math.Sin(2 * math.Pi * phase)
		case waveNoise:
			buf[i] = rand.Float64()*2 - 1
		}

		phase += phaseInc
		if phase >= 1.0 {
			phase -= 1.0
		}
	}
	return buf
}

// applyEnvelope applies a linear attack and exponential release in place
func applyEnvelope(buf floatBuffer, attackSec, releaseSec float64, sampleRate int) {
	total := len(buf)
	attack := int(attackSec * float64(sampleRate))
	release := int(releaseSec * float64(sampleRate))

	releaseStart := total - release
	if releaseStart < attack {
		releaseStart = attack
	}

	for i := 0; i < total; i++ {
		vol := 1.0
		if i < attack && attack > 0 {
			vol = float64(i) / float64(attack)
		} else if i >= releaseStart && release > 0 {
			// -60dB over the release
			t := float64(i-releaseStart) / float64(release)
			vol = math.Exp(-6.9 * t)
		}
		buf[i] *= vol
	}
}

// mixInto adds src scaled by gain into dst; src must not be longer than dst
func mixInto(dst, src floatBuffer, gain float64) {
	scaled := vek.MulNumber(src, gain)
	vek.Add_Inplace(dst[:len(scaled)], scaled)
}

// normalize scales buf so its absolute peak equals peak
func normalize(buf floatBuffer, peak float64) {
	if len(buf) == 0 {
		return
	}
	abs := vek.Abs(buf)
	if p := vek.Max(abs); p > 0 {
		vek.MulNumber_Inplace(buf, peak/p)
	}
}

// durationToSamples converts seconds to a sample count
func durationToSamples(d float64, sampleRate int) int {
	return int(d * float64(sampleRate))
}

// generateClick synthesizes a woodblock-like click: two damped partials over a noise transient
func generateClick(sampleRate int) floatBuffer {
	samples := durationToSamples(parameter.ClickSoundDuration.Seconds(), sampleRate)
	attack := parameter.ClickSoundAttack.Seconds()

	body := oscillator(waveSine, parameter.ClickFundamental, samples, sampleRate)
	applyEnvelope(body, attack, parameter.ClickSoundRelease.Seconds(), sampleRate)

	overtone := oscillator(waveSine, parameter.ClickOvertone, samples, sampleRate)
	applyEnvelope(overtone, attack, parameter.ClickSoundRelease.Seconds()/3, sampleRate)
	mixInto(body, overtone, parameter.ClickOvertoneMix)

	noiseLen := durationToSamples(parameter.ClickNoiseDuration.Seconds(), sampleRate)
	if noiseLen > samples {
		noiseLen = samples
	}
	noise := oscillator(waveNoise, 0, noiseLen, sampleRate)
	applyEnvelope(noise, 0, parameter.ClickNoiseDuration.Seconds(), sampleRate)
	mixInto(body, noise, parameter.ClickNoiseMix)

	normalize(body, parameter.ClickPeak)
	return body
}
