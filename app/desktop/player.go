package desktop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/soocke/marker-lens-go/domain/overlay"
)

// defaultStartGrace is how long Play waits for the player to fail fast
// (missing codec, no audio device) before treating it as running.
const defaultStartGrace = 150 * time.Millisecond

// CommandPlayer plays media through an external player process. ffplay and
// mpv get looping, muting and audio-only flags; any other command receives
// just the path.
type CommandPlayer struct {
	Command string
	// Args are placed before the generated arguments.
	Args []string
	// Env is appended to the current environment.
	Env []string
	// StartGrace overrides defaultStartGrace.
	StartGrace time.Duration
	Logger     *slog.Logger
}

var _ overlay.Player = (*CommandPlayer)(nil)

func (p *CommandPlayer) Play(ctx context.Context, path string, opts overlay.PlayOptions) (overlay.Playback, error) {
	if p == nil || p.Command == "" {
		return nil, errors.New("player: no command configured")
	}
	args := append(append([]string(nil), p.Args...), playerArgs(p.Command, path, opts)...)
	cmd := exec.Command(p.Command, args...)
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("player: start %s: %w", p.Command, err)
	}
	pb := &processPlayback{cmd: cmd, done: make(chan struct{})}
	go func() {
		pb.err = cmd.Wait()
		close(pb.done)
	}()

	grace := p.StartGrace
	if grace <= 0 {
		grace = defaultStartGrace
	}
	select {
	case <-pb.done:
		if pb.err == nil {
			pb.err = errors.New("exited immediately")
		}
		return nil, fmt.Errorf("player: %s: %w", p.Command, pb.err)
	case <-ctx.Done():
		_ = pb.Stop()
		return nil, ctx.Err()
	case <-time.After(grace):
	}
	if p.Logger != nil {
		p.Logger.Debug("player.start", "command", p.Command, "path", path, "video", opts.Video, "muted", opts.Muted)
	}
	return pb, nil
}

func playerArgs(command, path string, opts overlay.PlayOptions) []string {
	base := filepath.Base(strings.ReplaceAll(command, `\`, "/"))
	base = strings.TrimSuffix(strings.ToLower(base), ".exe")
	var args []string
	switch base {
	case "ffplay":
		args = append(args, "-loglevel", "error")
		if opts.Loop {
			args = append(args, "-loop", "0")
		} else {
			args = append(args, "-autoexit")
		}
		if opts.Muted {
			args = append(args, "-an")
		}
		if !opts.Video {
			args = append(args, "-nodisp")
		}
	case "mpv":
		args = append(args, "--really-quiet")
		if opts.Loop {
			args = append(args, "--loop-file=inf")
		}
		if opts.Muted {
			args = append(args, "--mute=yes")
		}
		if !opts.Video {
			args = append(args, "--no-video")
		}
	}
	return append(args, path)
}

type processPlayback struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
	once sync.Once
}

// Stop kills the player and waits for it to exit. Safe to call repeatedly.
func (p *processPlayback) Stop() error {
	var err error
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = fmt.Errorf("player: kill: %w", kerr)
		}
		<-p.done
	})
	return err
}
