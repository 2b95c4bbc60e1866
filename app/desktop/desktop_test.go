package desktop

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/marker-lens-go/domain/overlay"
)

func TestBrowserCommand(t *testing.T) {
	name, args, err := browserCommand("linux", "https://example.com/a?b=c")
	require.NoError(t, err)
	assert.Equal(t, "xdg-open", name)
	assert.Equal(t, []string{"https://example.com/a?b=c"}, args)

	name, args, err = browserCommand("windows", "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, "rundll32", name)
	assert.Equal(t, "url.dll,FileProtocolHandler", args[0])

	name, _, err = browserCommand("darwin", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "open", name)

	for _, bad := range []string{"file:///etc/passwd", "javascript:alert(1)", "https://", "not a url"} {
		_, _, err := browserCommand("linux", bad)
		assert.Error(t, err, bad)
	}
}

func TestPlayerArgs(t *testing.T) {
	args := playerArgs("/usr/bin/ffplay", "clip.mp4", overlay.PlayOptions{Video: true, Loop: true})
	assert.Equal(t, []string{"-loglevel", "error", "-loop", "0", "clip.mp4"}, args)

	args = playerArgs(`C:\tools\FFPLAY.EXE`, "a.mp3", overlay.PlayOptions{Loop: true, Muted: true})
	assert.Equal(t, []string{"-loglevel", "error", "-loop", "0", "-an", "-nodisp", "a.mp3"}, args)

	args = playerArgs("mpv", "a.mp3", overlay.PlayOptions{Loop: true})
	assert.Equal(t, []string{"--really-quiet", "--loop-file=inf", "--no-video", "a.mp3"}, args)

	assert.Equal(t, []string{"x.mp4"}, playerArgs("vlc", "x.mp4", overlay.PlayOptions{Video: true}))
}

// TestHelperProcess stands in for a media player when re-executed by the
// player tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("MARKERLENS_HELPER_PLAYER") != "1" {
		return
	}
	if strings.HasSuffix(os.Args[len(os.Args)-1], "broken.mp4") {
		os.Exit(3)
	}
	time.Sleep(time.Minute)
	os.Exit(0)
}

func helperPlayer() *CommandPlayer {
	return &CommandPlayer{
		Command: os.Args[0],
		Args:    []string{"-test.run=^TestHelperProcess$", "--"},
		Env:     []string{"MARKERLENS_HELPER_PLAYER=1"},
	}
}

func TestCommandPlayer_PlayAndStop(t *testing.T) {
	pb, err := helperPlayer().Play(context.Background(), "clip.mp4", overlay.PlayOptions{Video: true, Loop: true})
	require.NoError(t, err)
	require.NoError(t, pb.Stop())
	require.NoError(t, pb.Stop())
}

func TestCommandPlayer_ImmediateExitIsError(t *testing.T) {
	p := helperPlayer()
	p.StartGrace = 10 * time.Second
	_, err := p.Play(context.Background(), "broken.mp4", overlay.PlayOptions{})
	require.Error(t, err)
}

func TestCommandPlayer_MissingCommand(t *testing.T) {
	_, err := (&CommandPlayer{}).Play(context.Background(), "a.mp4", overlay.PlayOptions{})
	require.Error(t, err)
	_, err = (&CommandPlayer{Command: "definitely-not-a-player-binary"}).Play(context.Background(), "a.mp4", overlay.PlayOptions{})
	require.Error(t, err)
}
