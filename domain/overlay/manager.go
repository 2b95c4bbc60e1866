package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/asset"
	"github.com/soocke/marker-lens-go/domain/recognition"
)

// Collaborators bundles the render and media dependencies of a Manager.
type Collaborators struct {
	Surface  Surface
	Player   Player
	Loader   SceneLoader
	Animator Animator
}

type liveOverlay struct {
	targetID string
	kind     recognition.ContentType
	h        handler
}

type activation struct {
	target *recognition.Target
	asset  *asset.Asset
}

type sceneResult struct {
	gen      uint64
	targetID string
	scene    *Scene
	err      error
}

// Manager keeps at most one overlay live. Every activation disposes the
// previous overlay before constructing the next one.
//
// All methods must be called from the loop goroutine. Scene loads run in
// their own goroutines and are applied by Poll.
type Manager struct {
	c      Collaborators
	cfg    *config.Config
	logger *slog.Logger

	live    *liveOverlay
	pending *activation
	gen     uint64
	done    chan sceneResult
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewManager returns an idle manager. If cfg is nil the default
// configuration is used.
func NewManager(c Collaborators, cfg *config.Config, logger *slog.Logger) *Manager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if c.Loader == nil {
		c.Loader = GLTFLoader{}
	}
	m := &Manager{c: c, cfg: cfg, logger: logger, done: make(chan sceneResult, 4)}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Activate shows the overlay for target using the fetched payload a. While
// a link overlay is open the request is parked and ErrDeferred returned; the
// latest parked request is applied by CloseLink. Activating the open link
// again drops the parked request and leaves the page as it is. A
// *PlaybackWarning means the overlay is live but silent or without media.
func (m *Manager) Activate(target *recognition.Target, a *asset.Asset) error {
	if target == nil || a == nil {
		return fmt.Errorf("overlay: activate without target or asset")
	}
	if m.live != nil && m.live.kind == recognition.ContentLink {
		if target.ID == m.live.targetID {
			// the open page was confirmed again; whatever was parked behind
			// it has been superseded
			m.pending = nil
			return nil
		}
		m.pending = &activation{target: target, asset: a}
		if m.logger != nil {
			m.logger.Info("overlay.deferred", "target", target.ID, "link", m.live.targetID)
		}
		return ErrDeferred
	}
	return m.activate(target, a)
}

func (m *Manager) activate(target *recognition.Target, a *asset.Asset) error {
	m.disposeLive()
	kind := target.Content.Type
	switch kind {
	case recognition.ContentVideo, recognition.ContentAudio:
		if a.Path == "" {
			return ErrNoPayload
		}
		h, err := startMedia(m.ctx, m.c.Player, m.c.Surface, m.logger, target.ID, a.Path, kind == recognition.ContentVideo)
		if h == nil {
			return fmt.Errorf("overlay: %s %s: %w", kind, target.ID, err)
		}
		m.live = &liveOverlay{targetID: target.ID, kind: kind, h: h}
		m.logActivated(target.ID, kind)
		return err
	case recognition.Content3D:
		if a.Path == "" {
			return ErrNoPayload
		}
		ph, err := m.c.Surface.ShowLabel("loading model…")
		if err != nil {
			return fmt.Errorf("overlay: 3d %s: %w", target.ID, err)
		}
		m.live = &liveOverlay{targetID: target.ID, kind: kind, h: &modelOverlay{placeholder: ph}}
		go m.load(m.ctx, m.gen, target.ID, a.Path)
		m.logActivated(target.ID, kind)
		return nil
	case recognition.ContentLink:
		url := a.Locator
		if url == "" {
			url = target.Content.Locator
		}
		h, err := openLink(m.c.Surface, url)
		if err != nil {
			return fmt.Errorf("overlay: link %s: %w", target.ID, err)
		}
		m.live = &liveOverlay{targetID: target.ID, kind: kind, h: h}
		m.logActivated(target.ID, kind)
		return nil
	}
	return fmt.Errorf("overlay: unsupported content type %q", kind)
}

func (m *Manager) load(ctx context.Context, gen uint64, targetID, path string) {
	res := sceneResult{gen: gen, targetID: targetID}
	defer func() {
		if r := recover(); r != nil {
			res.scene, res.err = nil, fmt.Errorf("scene load panic: %v", r)
			if m.logger != nil {
				m.logger.Error("overlay.load panic", "target", targetID, "panic", r, "stack", string(debug.Stack()))
			}
		}
		select {
		case m.done <- res:
		case <-ctx.Done():
		}
	}()
	res.scene, res.err = m.c.Loader.Load(ctx, path)
}

// Poll applies completed scene loads. A scene is shown only if the 3D
// activation that requested it is still the live overlay.
func (m *Manager) Poll() {
	for {
		select {
		case r := <-m.done:
			m.applyScene(r)
		default:
			return
		}
	}
}

func (m *Manager) applyScene(r sceneResult) {
	if r.gen != m.gen || m.live == nil || m.live.targetID != r.targetID {
		if m.logger != nil {
			m.logger.Debug("overlay.scene stale", "target", r.targetID)
		}
		return
	}
	mo, ok := m.live.h.(*modelOverlay)
	if !ok {
		return
	}
	if r.err != nil {
		if m.logger != nil {
			m.logger.Warn("overlay.scene load failed", "target", r.targetID, "error", r.err)
		}
		return
	}
	if err := mo.attach(m.c.Surface, m.c.Animator, r.scene, m.cfg.ModelRotationDegPerSec); err != nil && m.logger != nil {
		m.logger.Warn("overlay.scene attach failed", "target", r.targetID, "error", err)
	}
}

// Deactivate disposes the live overlay unless it is a link. Idempotent.
func (m *Manager) Deactivate() {
	if m.live == nil || m.live.kind == recognition.ContentLink {
		return
	}
	m.disposeLive()
}

// CloseLink closes a live link overlay on user request and applies the
// activation parked while it was open, if any.
func (m *Manager) CloseLink() error {
	if m.live == nil || m.live.kind != recognition.ContentLink {
		return nil
	}
	m.disposeLive()
	p := m.pending
	m.pending = nil
	if p == nil {
		return nil
	}
	return m.activate(p.target, p.asset)
}

// Dispose tears down every overlay including links, drops any parked
// activation and abandons pending scene loads. Idempotent.
func (m *Manager) Dispose() {
	m.pending = nil
	m.disposeLive()
	m.cancel()
	m.ctx, m.cancel = context.WithCancel(context.Background())
}

// Active reports the live overlay.
func (m *Manager) Active() (targetID string, kind recognition.ContentType, ok bool) {
	if m.live == nil {
		return "", "", false
	}
	return m.live.targetID, m.live.kind, true
}

// Pending reports the activation parked behind an open link.
func (m *Manager) Pending() (string, bool) {
	if m.pending == nil {
		return "", false
	}
	return m.pending.target.ID, true
}

func (m *Manager) disposeLive() {
	m.gen++
	if m.live == nil {
		return
	}
	l := m.live
	m.live = nil
	if err := l.h.dispose(); err != nil && m.logger != nil {
		m.logger.Warn("overlay.dispose", "target", l.targetID, "error", err)
	}
	if m.logger != nil {
		m.logger.Debug("overlay.disposed", "target", l.targetID, "kind", string(l.kind))
	}
}

func (m *Manager) logActivated(id string, kind recognition.ContentType) {
	if m.logger != nil {
		m.logger.Info("overlay.activated", "target", id, "kind", string(kind))
	}
}
