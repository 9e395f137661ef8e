// ABOUTME: Demo player feeding a local file through the output backend
// ABOUTME: Decodes WAV or MP3 and exercises open/write/drain/volume/seek
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/spf13/cobra"

	"github.com/tonearm/tonearm-go/internal/config"
	"github.com/tonearm/tonearm-go/internal/output"
	"github.com/tonearm/tonearm-go/pkg/audio"
)

var (
	cfgFile    string
	deviceName string
	volume     int
	seekMs     int
)

var rootCmd = &cobra.Command{
	Use:   "tonearm-play [file]",
	Short: "Play a WAV or MP3 file through the ALSA output backend",
	Long: `tonearm-play decodes a local audio file and feeds it to the
output engine, the same path a playback frontend would use.

Examples:
  tonearm-play track.wav
  tonearm-play --device hw:1,0 --volume 60 track.mp3
  tonearm-play --seek 30000 track.mp3`,
	Args:         cobra.ExactArgs(1),
	RunE:         runPlay,
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.tonearmrc)")
	rootCmd.Flags().StringVarP(&deviceName, "device", "d", "", "PCM device, overrides the config")
	rootCmd.Flags().IntVarP(&volume, "volume", "v", -1, "hardware volume 0-100 (-1 leaves it untouched)")
	rootCmd.Flags().IntVar(&seekMs, "seek", 0, "start position in milliseconds")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if deviceName != "" {
		cfg.Output.Device = deviceName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	src, format, err := openSource(f, path)
	if err != nil {
		return err
	}

	log.Printf("playing %s (%s, %d Hz, %d channels)",
		filepath.Base(path), humanize.Bytes(uint64(info.Size())), format.Rate, format.Channels)

	engine := output.New(cfg)
	defer engine.Cleanup()

	if volume >= 0 {
		engine.SetVolume(volume, volume)
	}

	if err := engine.Open(format); err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	defer engine.Close()

	if seekMs > 0 {
		if _, err := io.CopyN(io.Discard, src, int64(format.MillisToBytes(seekMs))); err != nil {
			return fmt.Errorf("seek to %d ms: %w", seekMs, err)
		}
		engine.SetWrittenTime(seekMs)
	}

	buf := make([]byte, format.FramesToBytes(4096))
	var total int64
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			engine.Write(buf[:n])
			total += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}

	engine.Drain()

	log.Printf("done: %s of PCM, %v played, position %d ms",
		humanize.Bytes(uint64(total)), format.Duration(int(total)), engine.OutputTime())
	return nil
}

// openSource returns a reader of interleaved S16_LE bytes for the file.
func openSource(f *os.File, path string) (io.Reader, audio.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return openWAV(f)
	case ".mp3":
		return openMP3(f)
	default:
		return nil, audio.Format{}, fmt.Errorf("unsupported file type: %s", path)
	}
}

func openMP3(f *os.File) (io.Reader, audio.Format, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}
	// go-mp3 always emits 16-bit little-endian stereo.
	format := audio.Format{
		Sample:   audio.FormatS16LE,
		Rate:     dec.SampleRate(),
		Channels: 2,
	}
	return dec, format, nil
}

func openWAV(f *os.File) (io.Reader, audio.Format, error) {
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, audio.Format{}, fmt.Errorf("not a valid wav file")
	}
	if dec.BitDepth != 16 {
		return nil, audio.Format{}, fmt.Errorf("unsupported wav bit depth: %d", dec.BitDepth)
	}
	format := audio.Format{
		Sample:   audio.FormatS16LE,
		Rate:     int(dec.SampleRate),
		Channels: int(dec.NumChans),
	}
	return &wavReader{dec: dec}, format, nil
}

// wavReader adapts the sample-based wav decoder to a byte stream.
type wavReader struct {
	dec     *wav.Decoder
	pending []byte
}

func (r *wavReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		buf := &goaudio.IntBuffer{Data: make([]int, 2048)}
		n, err := r.dec.PCMBuffer(buf)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		samples := make([]int16, n)
		for i := 0; i < n; i++ {
			samples[i] = audio.SampleToInt16(buf.Data[i])
		}
		r.pending = audio.Int16Bytes(samples)
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
