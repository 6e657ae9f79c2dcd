// Package media validates and re-encodes recorded audio with ffmpeg.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/process"
)

// Info describes a probed audio file.
type Info struct {
	Duration   time.Duration
	Codec      string
	SampleRate int
	Channels   int
}

// Transcoder validates audio input and re-encodes it into the container the
// transcription providers accept.
type Transcoder interface {
	Probe(ctx context.Context, path string) (Info, error)
	Transcode(ctx context.Context, input, output string) error
}

// Config configures the ffmpeg transcoder.
type Config struct {
	FFmpegPath  string `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	SampleRate  int    `yaml:"sample_rate" mapstructure:"sample_rate"`
	Bitrate     string `yaml:"bitrate" mapstructure:"bitrate"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	if c.Bitrate == "" {
		c.Bitrate = "128k"
	}
}

// FFmpeg is a Transcoder backed by the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	cfg    Config
	runner process.Runner
	log    *logger.Logger
}

// NewFFmpeg creates an ffmpeg transcoder. A nil runner uses process.Exec.
func NewFFmpeg(cfg Config, runner process.Runner) *FFmpeg {
	cfg.ApplyDefaults()
	if runner == nil {
		runner = process.Exec
	}
	return &FFmpeg{cfg: cfg, runner: runner, log: logger.WithComponent("media")}
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe checks that path exists, is non-empty and holds a decodable audio
// stream with a positive duration.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("stat input: %w", err)
	}
	if st.Size() == 0 {
		return Info{}, fmt.Errorf("input %s is empty", filepath.Base(path))
	}

	res, err := f.runner.Run(ctx, process.Command{
		Binary: f.cfg.FFprobePath,
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration:stream=codec_type,codec_name,sample_rate,channels",
			"-of", "json",
			path,
		},
	})
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}

	var out probeOutput
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		return Info{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var info Info
	found := false
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		found = true
		info.Codec = s.CodecName
		info.Channels = s.Channels
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		break
	}
	if !found {
		return Info{}, fmt.Errorf("input %s has no audio stream", filepath.Base(path))
	}

	secs, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil || secs <= 0 {
		return Info{}, fmt.Errorf("input %s has no playable duration", filepath.Base(path))
	}
	info.Duration = time.Duration(secs * float64(time.Second))
	return info, nil
}

// Transcode re-encodes input to AAC in an m4a container at output. The
// encoder runs with bitexact flags so identical input yields identical
// bytes. The result is written next to output and renamed into place.
func (f *FFmpeg) Transcode(ctx context.Context, input, output string) error {
	tmp := output + ".part" + filepath.Ext(output)
	_ = os.Remove(tmp)

	res, err := f.runner.Run(ctx, process.Command{
		Binary: f.cfg.FFmpegPath,
		Args: []string{
			"-hide_banner", "-nostdin", "-y",
			"-loglevel", "error",
			"-i", input,
			"-vn",
			"-map_metadata", "-1",
			"-c:a", "aac",
			"-b:a", f.cfg.Bitrate,
			"-ar", strconv.Itoa(f.cfg.SampleRate),
			"-fflags", "+bitexact",
			"-flags:a", "+bitexact",
			"-movflags", "+faststart",
			tmp,
		},
	})
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("transcode %s: %w", filepath.Base(input), err)
	}

	if err := os.Rename(tmp, output); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move transcoded output: %w", err)
	}

	f.log.Debug("transcoded", logger.Fields(
		"input", filepath.Base(input),
		"output", filepath.Base(output),
		logger.FieldDuration, res.Duration.String(),
	))
	return nil
}
