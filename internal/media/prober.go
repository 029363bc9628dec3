package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"framepick/internal/logging"
)

// Info describes a video source as reported by the prober.
type Info struct {
	Duration time.Duration `json:"duration"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	FPS      float64       `json:"fps"`
	Codec    string        `json:"codec"`
}

// Prober retrieves container/stream metadata for a video file.
type Prober interface {
	Probe(ctx context.Context, path string) (*Info, error)
}

// FFProber implements Prober using the ffprobe binary.
type FFProber struct{}

// NewFFProber returns a Prober backed by ffprobe, or an error if the
// binary is not on PATH.
func NewFFProber() (*FFProber, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}
	return &FFProber{}, nil
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Probe runs ffprobe against path and returns the primary video
// stream's properties.
func (p *FFProber) Probe(ctx context.Context, path string) (*Info, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{}

	if out.Format.Duration != "" {
		if secs, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			info.Duration = time.Duration(secs * float64(time.Second))
		}
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Codec = s.CodecName
		info.Width = s.Width
		info.Height = s.Height
		info.FPS = parseFrameRate(s.AvgFrameRate)
		if info.FPS == 0 {
			info.FPS = parseFrameRate(s.RFrameRate)
		}
		break
	}

	if info.Codec == "" {
		return nil, fmt.Errorf("no video stream found in %s", filepath.Base(path))
	}

	logging.Debug("Probed %s: codec=%s %dx%d %.3ffps duration=%v",
		filepath.Base(path), info.Codec, info.Width, info.Height, info.FPS, info.Duration)

	return info, nil
}

// ProbePrefix probes only the first maxBytes of the file. It is used
// for the lightweight codec-compatibility check, so a truncated or
// unreadable container fails here instead of mid-extraction.
func (p *FFProber) ProbePrefix(ctx context.Context, path string, maxBytes int64) (*Info, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open for prefix probe: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "framepick-probe-*"+filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("create probe temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil {
			logging.Warn("failed to remove probe temp file %s: %v", tmp.Name(), err)
		}
	}()

	if _, err := io.CopyN(tmp, src, maxBytes); err != nil && err != io.EOF {
		return nil, fmt.Errorf("copy probe prefix: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	return p.Probe(ctx, tmp.Name())
}

// parseFrameRate converts ffprobe's "num/den" rate strings to a float.
func parseFrameRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 1 {
		v, _ := strconv.ParseFloat(parts[0], 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
