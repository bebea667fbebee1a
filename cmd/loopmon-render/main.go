// ABOUTME: Offline renderer applying the monitoring DSP chain to a WAV file
// ABOUTME: Useful for A/B checks of karaoke, compressor, and EQ settings
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/loopmon/loopmon-go/internal/dsp"
	"github.com/loopmon/loopmon-go/internal/source"
)

const blockFrames = 4096

var (
	inPath  = flag.String("in", "", "Input WAV file")
	outPath = flag.String("out", "", "Output WAV file")

	karaokeLevel = flag.Float64("karaoke", 0, "Karaoke intensity (0-1)")

	compress    = flag.Bool("compress", false, "Enable the compressor")
	thresholdDB = flag.Float64("threshold", -20, "Compressor threshold in dBFS")
	ratio       = flag.Float64("ratio", 4, "Compressor ratio")
	attackMs    = flag.Float64("attack", 10, "Compressor attack in ms")
	releaseMs   = flag.Float64("release", 100, "Compressor release in ms")
	makeupDB    = flag.Float64("makeup", 0, "Compressor makeup gain in dB")

	eqGains = flag.String("eq", "", "Comma-separated per-band gains in dB (8 values)")
	volume  = flag.Float64("volume", 1.0, "Output gain (linear)")
)

func main() {
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		log.Fatalf("both -in and -out are required")
	}

	src, err := source.NewWAVSource(*inPath)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	defer src.Close()

	sampleRate := src.SampleRate()
	channels := src.Channels()
	log.Printf("Rendering %s: %dHz, %d channels", *inPath, sampleRate, channels)

	chain, err := buildChain(sampleRate, channels)
	if err != nil {
		log.Fatalf("configure chain: %v", err)
	}

	outFile, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer outFile.Close()

	enc := wav.NewEncoder(outFile, sampleRate, 16, channels, 1)
	defer enc.Close()

	block := make([]float32, blockFrames*channels)
	intBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}

	totalFrames := 0
	for {
		frames, err := src.Read(block)
		if frames > 0 {
			samples := block[:frames*channels]
			chain.process(samples, frames)
			if werr := writeBlock(enc, intBuf, samples); werr != nil {
				log.Fatalf("write output: %v", werr)
			}
			totalFrames += frames
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("read input: %v", err)
		}
	}

	log.Printf("Rendered %d frames to %s", totalFrames, *outPath)
}

// chain is the offline DSP path in processing order.
type chain struct {
	karaoke    *dsp.Karaoke
	compressor *dsp.Compressor
	eq         *dsp.Equalizer
	volume     float32
	channels   int
}

func buildChain(sampleRate, channels int) (*chain, error) {
	c := &chain{volume: float32(*volume), channels: channels}

	if *karaokeLevel > 0 && channels == 2 {
		c.karaoke = dsp.NewKaraoke(sampleRate)
		c.karaoke.SetIntensity(float32(*karaokeLevel))
	}

	if *compress {
		c.compressor = dsp.NewCompressor(sampleRate, channels)
		c.compressor.SetParameters(dsp.CompressorParams{
			ThresholdDB:  *thresholdDB,
			Ratio:        *ratio,
			AttackMs:     *attackMs,
			ReleaseMs:    *releaseMs,
			MakeupGainDB: *makeupDB,
		})
	}

	if *eqGains != "" {
		parts := strings.Split(*eqGains, ",")
		if len(parts) != dsp.BandCount {
			log.Fatalf("-eq needs %d comma-separated values", dsp.BandCount)
		}
		c.eq = dsp.NewEqualizer(sampleRate, channels)
		for i, part := range parts {
			gain, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, err
			}
			c.eq.SetBandGain(i, gain)
		}
	}

	return c, nil
}

func (c *chain) process(samples []float32, frames int) {
	if c.karaoke != nil {
		c.karaoke.Process(samples, frames, c.channels)
	}
	if c.compressor != nil {
		c.compressor.Process(samples, frames)
	}
	if c.eq != nil {
		c.eq.Process(samples, frames)
	}
	if c.volume != 1.0 {
		for i := range samples {
			samples[i] *= c.volume
		}
	}
}

func writeBlock(enc *wav.Encoder, buf *audio.IntBuffer, samples []float32) error {
	if cap(buf.Data) < len(samples) {
		buf.Data = make([]int, len(samples))
	}
	buf.Data = buf.Data[:len(samples)]

	for i, v := range samples {
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		buf.Data[i] = int(v * 32767)
	}

	return enc.Write(buf)
}
