// Package fetch is the worker-side boundary to the external download
// tools. It is the only place allowed to look at tool output to decide
// whether the provider is structurally broken; everything above it sees
// tagged errors and exit codes.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/denyshon/tg-load/internal/core"
	"go.uber.org/zap"
)

type Config struct {
	// InstaloaderBin and YTDLPBin are the external tool binaries.
	InstaloaderBin string
	YTDLPBin       string
	// SessionFile is the Instagram session used for story access.
	SessionFile string
}

func (c *Config) applyDefaults() {
	if c.InstaloaderBin == "" {
		c.InstaloaderBin = "instaloader"
	}
	if c.YTDLPBin == "" {
		c.YTDLPBin = "yt-dlp"
	}
}

type Fetcher struct {
	cfg Config
	log *zap.Logger
}

func NewFetcher(cfg Config, log *zap.Logger) *Fetcher {
	cfg.applyDefaults()
	return &Fetcher{cfg: cfg, log: log.Named("fetch")}
}

// Fetch downloads the media for spec into spec.Dir. A tool failure that
// looks like a broken session or a changed provider API comes back
// wrapping core.ErrFatalExternal; everything else is operational.
func (f *Fetcher) Fetch(ctx context.Context, spec core.JobSpec) error {
	if spec.ID == "" {
		return errors.New("fetch: required id")
	} else if spec.Dir == "" {
		return errors.New("fetch: required dir")
	}
	if err := os.MkdirAll(spec.Dir, 0o755); err != nil {
		return fmt.Errorf("fetch: create dir: %w", err)
	}

	bin, args, err := f.command(spec)
	if err != nil {
		return err
	}
	return f.runTool(ctx, spec, bin, args)
}

func (f *Fetcher) command(spec core.JobSpec) (string, []string, error) {
	switch spec.Kind {
	case core.FetchKindPost:
		// filename-pattern "file" puts the caption in file.txt, where
		// the reply side looks for it
		args := []string{
			"--dirname-pattern", ".",
			"--filename-pattern", "file",
			"--no-metadata-json", "--no-compress-json",
			"--", "-" + spec.ID,
		}
		return f.cfg.InstaloaderBin, args, nil

	case core.FetchKindStory:
		args := []string{
			"--dirname-pattern", ".",
			"--filename-pattern", "file",
			"--no-metadata-json", "--no-compress-json",
		}
		if f.cfg.SessionFile != "" {
			args = append(args, "--sessionfile", f.cfg.SessionFile)
		}
		// a specific-story id arrives as "username/mediaid";
		// instaloader's --stories takes the profile name only
		target, _, _ := strings.Cut(spec.ID, "/")
		args = append(args, "--stories", "--", target)
		return f.cfg.InstaloaderBin, args, nil

	case core.FetchKindSong:
		args := []string{
			"-x", "--audio-format", "mp3",
			"-o", "%(title)s.%(ext)s",
			"--", spec.ID,
		}
		return f.cfg.YTDLPBin, args, nil

	case core.FetchKindAlbum:
		args := []string{
			"-x", "--audio-format", "mp3",
			"-o", "%(playlist_index)02d - %(title)s.%(ext)s",
			"--yes-playlist",
			"https://music.youtube.com/playlist?list=" + spec.ID,
		}
		return f.cfg.YTDLPBin, args, nil

	case core.FetchKindShort:
		args := []string{
			"-f", "mp4",
			"-o", "%(id)s.%(ext)s",
			"https://youtube.com/shorts/" + spec.ID,
		}
		return f.cfg.YTDLPBin, args, nil
	}
	return "", nil, fmt.Errorf("fetch: unknown kind %q", spec.Kind)
}

func (f *Fetcher) runTool(ctx context.Context, spec core.JobSpec, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = spec.Dir

	var stderr bytes.Buffer
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	out := stderr.String()
	f.log.Error("tool failed",
		zap.String("bin", bin),
		zap.String("id", spec.ID),
		zap.String("stderr", tail(out, 512)),
		zap.Error(err),
	)
	if looksFatal(out) {
		return fmt.Errorf("fetch: %s: %w", bin, core.ErrFatalExternal)
	}
	return fmt.Errorf("fetch: %s: %w", bin, err)
}

// fatalMarkers are the tool messages meaning retrying cannot help: the
// session is dead or the provider changed underneath us.
var fatalMarkers = []string{
	"login_required",
	"checkpoint_required",
	"401 unauthorized",
	"403 forbidden",
	"sign in to confirm",
	"signature extraction failed",
	"unable to extract",
}

func looksFatal(stderr string) bool {
	low := strings.ToLower(stderr)
	for _, m := range fatalMarkers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// ExitCode maps a Fetch result to the worker process exit code the
// supervisor classifies on.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, core.ErrFatalExternal):
		return core.FatalExternalExitCode
	default:
		return 1
	}
}
