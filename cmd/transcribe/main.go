// Command transcribe converts a saved analysis job response into transcript
// files without running the web server.
//
//	transcribe -result job.json -name "Team Sync.mp4" -out ./transcripts -format both
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/k0kubun/pp/v3"

	"github.com/loukt/video-transcript-explorer/internal/analysis"
	"github.com/loukt/video-transcript-explorer/internal/lifecycle"
	"github.com/loukt/video-transcript-explorer/internal/logging"
	"github.com/loukt/video-transcript-explorer/internal/models"
	"github.com/loukt/video-transcript-explorer/internal/store"
	"github.com/loukt/video-transcript-explorer/internal/subtitles"
	"github.com/loukt/video-transcript-explorer/internal/transcript"
)

type flags struct {
	ResultPath string
	VideoName  string
	OutDir     string
	Format     string
	Policy     string
	Debug      bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	fs.StringVar(&f.ResultPath, "result", "-", "analysis job response JSON file, - for stdin")
	fs.StringVar(&f.VideoName, "name", "video", "original video file name used for output names")
	fs.StringVar(&f.OutDir, "out", ".", "output directory")
	fs.StringVar(&f.Format, "format", "both", "text, subtitle or both")
	fs.StringVar(&f.Policy, "policy", "strict", "strict or lenient handling of failed or unfinished jobs")
	fs.BoolVar(&f.Debug, "debug", false, "pretty-print the decoded job and transcript to stderr")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	level := "info"
	if f.Debug {
		level = "debug"
	}
	logger := logging.NewWithWriter(os.Stderr, level)

	written, err := run(f, os.Stdin, logger)
	if err != nil {
		logger.Error("transcribe failed", "error", err)
		os.Exit(1)
	}
	for _, path := range written {
		fmt.Println(path)
	}
}

func run(f flags, stdin io.Reader, logger *slog.Logger) ([]string, error) {
	policy, err := lifecycle.ParsePolicy(f.Policy)
	if err != nil {
		return nil, err
	}
	formats, err := outputFormats(f.Format)
	if err != nil {
		return nil, err
	}

	raw, err := readInput(f.ResultPath, stdin)
	if err != nil {
		return nil, err
	}
	status, err := analysis.DecodeStatus(raw)
	if err != nil {
		return nil, err
	}

	t, err := buildTranscript(status, f.VideoName, policy, logger)
	if err != nil {
		return nil, err
	}

	if f.Debug {
		printer := pp.New()
		printer.SetOutput(os.Stderr)
		printer.Println(status.State, status.Result)
		printer.Println(t)
	}

	if err := os.MkdirAll(f.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var written []string
	for _, format := range formats {
		dl := subtitles.Export(t, f.VideoName, format)
		path := filepath.Join(f.OutDir, dl.Filename)
		if err := os.WriteFile(path, dl.Body, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		logger.Debug("transcript written", "path", path, "bytes", len(dl.Body))
		written = append(written, path)
	}
	return written, nil
}

func buildTranscript(status analysis.JobStatus, videoName string, policy lifecycle.Policy, logger *slog.Logger) (models.Transcript, error) {
	const videoID = "offline"

	var cause error
	switch status.State {
	case analysis.StateSucceeded:
		return transcript.NewBuilder(store.New(), logger).Build(videoID, status), nil
	case analysis.StateFailed:
		cause = fmt.Errorf("%w: %s", analysis.ErrJobFailed, status.Reason)
	default:
		cause = errors.New("analysis job has not finished")
	}

	if policy == lifecycle.PolicyStrict {
		return models.Transcript{}, cause
	}
	logger.Warn("writing placeholder transcript", "error", cause)
	return transcript.Placeholder(videoID, videoName, cause.Error(), time.Now()), nil
}

func outputFormats(s string) ([]subtitles.Format, error) {
	if s == "both" {
		return []subtitles.Format{subtitles.FormatText, subtitles.FormatSubtitle}, nil
	}
	f, err := subtitles.ParseFormat(s)
	if err != nil {
		return nil, err
	}
	return []subtitles.Format{f}, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	return data, nil
}
