package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/denyshon/tg-load/internal/core"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTool writes a shell script acting as an external downloader.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestCommand_PerKind(t *testing.T) {
	t.Parallel()
	f := NewFetcher(Config{SessionFile: "/tmp/session"}, zap.NewNop())

	cases := []struct {
		kind    core.FetchKind
		id      string
		wantBin string
		wantArg string
	}{
		{core.FetchKindPost, "DH4NzQ", "instaloader", "-DH4NzQ"},
		{core.FetchKindStory, "someuser", "instaloader", "--stories"},
		{core.FetchKindSong, "abc123", "yt-dlp", "mp3"},
		{core.FetchKindAlbum, "OLAK5uy_x", "yt-dlp", "https://music.youtube.com/playlist?list=OLAK5uy_x"},
		{core.FetchKindShort, "dQw4", "yt-dlp", "https://youtube.com/shorts/dQw4"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.kind), func(t *testing.T) {
			t.Parallel()
			bin, args, err := f.command(core.JobSpec{ID: tc.id, Kind: tc.kind, Dir: "/x"})
			require.NoError(t, err)
			require.Equal(t, tc.wantBin, bin)
			require.Contains(t, args, tc.wantArg)
		})
	}

	_, _, err := f.command(core.JobSpec{ID: "x", Kind: "bogus", Dir: "/x"})
	require.Error(t, err)
}

func TestCommand_CaptionFilenamePattern(t *testing.T) {
	t.Parallel()
	f := NewFetcher(Config{}, zap.NewNop())

	for _, kind := range []core.FetchKind{core.FetchKindPost, core.FetchKindStory} {
		_, args, err := f.command(core.JobSpec{ID: "x", Kind: kind, Dir: "/x"})
		require.NoError(t, err)

		i := -1
		for j, a := range args {
			if a == "--filename-pattern" {
				i = j
				break
			}
		}
		require.GreaterOrEqual(t, i, 0, "%s must set a filename pattern", kind)
		require.Equal(t, "file", args[i+1], "captions must land in file.txt")
	}
}

func TestCommand_StoryCompositeID(t *testing.T) {
	t.Parallel()
	f := NewFetcher(Config{}, zap.NewNop())

	_, args, err := f.command(core.JobSpec{
		ID:   "someuser/3141592653589793238",
		Kind: core.FetchKindStory,
		Dir:  "/x",
	})
	require.NoError(t, err)
	require.Equal(t, "someuser", args[len(args)-1],
		"the stories target is the profile name, not the composite id")
	require.NotContains(t, args, "someuser/3141592653589793238")
}

func TestCommand_StorySessionFile(t *testing.T) {
	t.Parallel()

	f := NewFetcher(Config{SessionFile: "/tmp/session"}, zap.NewNop())
	_, args, err := f.command(core.JobSpec{ID: "u", Kind: core.FetchKindStory, Dir: "/x"})
	require.NoError(t, err)
	require.Contains(t, args, "--sessionfile")

	f = NewFetcher(Config{}, zap.NewNop())
	_, args, err = f.command(core.JobSpec{ID: "u", Kind: core.FetchKindStory, Dir: "/x"})
	require.NoError(t, err)
	require.NotContains(t, args, "--sessionfile")
}

func TestLooksFatal(t *testing.T) {
	t.Parallel()

	fatal := []string{
		"instaloader: error: Login_Required when fetching",
		"HTTP Error 401 Unauthorized",
		"ERROR: Sign in to confirm you're not a bot",
		"yt-dlp: signature extraction failed",
		"ERROR: unable to extract player version",
	}
	for _, s := range fatal {
		require.True(t, looksFatal(s), "want fatal: %q", s)
	}

	operational := []string{
		"",
		"connection reset by peer",
		"HTTP Error 429 Too Many Requests",
		"temporary failure in name resolution",
	}
	for _, s := range operational {
		require.False(t, looksFatal(s), "want operational: %q", s)
	}
}

func TestFetch_ValidatesSpec(t *testing.T) {
	t.Parallel()
	f := NewFetcher(Config{}, zap.NewNop())

	err := f.Fetch(context.Background(), core.JobSpec{Kind: core.FetchKindPost, Dir: "/x"})
	require.Error(t, err)

	err = f.Fetch(context.Background(), core.JobSpec{ID: "x", Kind: core.FetchKindPost})
	require.Error(t, err)
}

func TestFetch_Succeeds(t *testing.T) {
	t.Parallel()
	bin := fakeTool(t, "exit 0")
	f := NewFetcher(Config{YTDLPBin: bin}, zap.NewNop())

	dir := filepath.Join(t.TempDir(), "job")
	err := f.Fetch(context.Background(), core.JobSpec{ID: "abc", Kind: core.FetchKindSong, Dir: dir})
	require.NoError(t, err)
	require.DirExists(t, dir, "the job dir is created before the tool runs")
	require.Equal(t, 0, ExitCode(err))
}

func TestFetch_FatalStderrIsTagged(t *testing.T) {
	t.Parallel()
	bin := fakeTool(t, `echo "ERROR: login_required" >&2; exit 1`)
	f := NewFetcher(Config{InstaloaderBin: bin}, zap.NewNop())

	err := f.Fetch(context.Background(), core.JobSpec{ID: "abc", Kind: core.FetchKindPost, Dir: t.TempDir()})
	require.ErrorIs(t, err, core.ErrFatalExternal)
	require.Equal(t, core.FatalExternalExitCode, ExitCode(err))
}

func TestFetch_OperationalFailure(t *testing.T) {
	t.Parallel()
	bin := fakeTool(t, `echo "connection reset by peer" >&2; exit 2`)
	f := NewFetcher(Config{YTDLPBin: bin}, zap.NewNop())

	err := f.Fetch(context.Background(), core.JobSpec{ID: "abc", Kind: core.FetchKindShort, Dir: t.TempDir()})
	require.Error(t, err)
	require.False(t, errors.Is(err, core.ErrFatalExternal))
	require.Equal(t, 1, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, core.FatalExternalExitCode, ExitCode(core.ErrFatalExternal))
	require.Equal(t, 1, ExitCode(errors.New("anything else")))
}
