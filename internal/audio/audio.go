// Package audio tunes a captured microphone feed for low-latency voice
// transport: a fixed-buffer noise gate on the PCM path and an SDP rewrite
// biasing negotiation toward a low-delay opus profile. Both are
// optimizations, not correctness requirements; callers degrade to the
// unprocessed feed or default codec parameters when either cannot apply.
package audio

import (
	"strings"
)

const (
	// DefaultBufferSize favors stability for general playback paths.
	DefaultBufferSize = 1024
	// MicBufferSize favors latency on the microphone send path.
	MicBufferSize = 256

	defaultNoiseFloor = 0.01
)

// Track is a mono PCM audio feed.
type Track interface {
	// ReadSamples fills dst with the next samples and returns how many
	// were written. io.EOF ends the feed.
	ReadSamples(dst []float32) (int, error)
	SampleRate() int
	Close() error
}

// Options control the gate pipeline.
type Options struct {
	// BufferSize is the number of samples pulled from the source per
	// processing step. Zero means DefaultBufferSize.
	BufferSize int
	// NoiseFloor is the amplitude below which a sample is treated as
	// static and zeroed. Zero means 0.01.
	NoiseFloor float64
}

// Process wraps t in a noise-gate pipeline. A nil track is returned
// unchanged; there is nothing to gate and that is not an error. The
// returned track must be kept alive (and closed) by the caller for the
// lifetime of the processed feed.
func Process(t Track, opts Options) Track {
	if t == nil {
		return t
	}

	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	floor := float32(opts.NoiseFloor)
	if floor <= 0 {
		floor = defaultNoiseFloor
	}

	return &gatedTrack{
		src:   t,
		floor: floor,
		buf:   make([]float32, size),
	}
}

// gatedTrack pulls fixed-size frames from the source and zeroes every
// sample whose amplitude sits below the noise floor.
type gatedTrack struct {
	src     Track
	floor   float32
	buf     []float32
	pending []float32
	err     error
}

func (g *gatedTrack) ReadSamples(dst []float32) (int, error) {
	if len(g.pending) == 0 {
		if g.err != nil {
			return 0, g.err
		}

		n, err := g.src.ReadSamples(g.buf)
		frame := g.buf[:n]
		for i, sample := range frame {
			if abs(sample) < g.floor {
				frame[i] = 0
			}
		}
		g.pending = frame
		// Serve the samples read alongside the error first; surface the
		// error on the next call.
		g.err = err
		if n == 0 && err != nil {
			return 0, err
		}
	}

	n := copy(dst, g.pending)
	g.pending = g.pending[n:]
	return n, nil
}

func (g *gatedTrack) SampleRate() int { return g.src.SampleRate() }

func (g *gatedTrack) Close() error { return g.src.Close() }

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// opusFmtpBias requests the low-delay opus profile: small packet time,
// in-band FEC, mono, constant bitrate, capped bitrate ceiling.
const opusFmtpBias = "minptime=10;useinbandfec=1;stereo=0;sprop-stereo=0;cbr=1;maxaveragebitrate=64000;maxplaybackrate=48000;ptime=20;maxptime=40;"

// BiasSDP rewrites the opus fmtp line of a session description to request
// the low-latency profile. Descriptions without an opus fmtp line pass
// through unchanged.
func BiasSDP(sdp string) string {
	return strings.ReplaceAll(sdp, "a=fmtp:111 ", "a=fmtp:111 "+opusFmtpBias)
}
