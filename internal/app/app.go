// Package app wires the window, input, and part viewer into the main loop.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/frc3322/aerie-partview/internal/config"
	"github.com/frc3322/aerie-partview/internal/engine/blit"
	"github.com/frc3322/aerie-partview/internal/engine/input"
	"github.com/frc3322/aerie-partview/internal/engine/render"
	"github.com/frc3322/aerie-partview/internal/engine/window"
	"github.com/frc3322/aerie-partview/internal/remote"
	"github.com/frc3322/aerie-partview/internal/viewer"
)

// App is the part viewer application.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	running bool

	window    *window.Window
	input     *input.Input
	presenter *blit.Presenter

	viewer      *viewer.Viewer
	interaction *viewer.Interaction

	// Last image state pushed to the presenter, to skip redundant uploads.
	shownIndex int
	shownReady bool
	loadFailed bool
}

// viewMode is what the window shows for the current frame.
type viewMode int

const (
	viewModeImage   viewMode = iota // current station is cached, show it
	viewModeLoading                 // dim the previous image until it arrives
	viewModeFailure                 // nothing ever loaded, failure shade
)

// presentMode decides the frame's visual state from whether the current
// station's image is ready, whether any image was shown before, and whether
// the initial load failed outright.
func presentMode(ready, shownBefore, loadFailed bool) viewMode {
	switch {
	case ready:
		return viewModeImage
	case shownBefore:
		return viewModeLoading
	case loadFailed:
		return viewModeFailure
	default:
		return viewModeLoading
	}
}

// New creates the application: window, GL presenter, backend client and viewer.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{
		cfg:        cfg,
		log:        log,
		shownIndex: -1,
	}

	var err error
	a.window, err = window.New(window.Config{
		Title:  "Aerie Part Viewer",
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		VSync:  cfg.Window.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Presenter needs the GL context, so it comes after the window.
	a.presenter, err = blit.New(cfg.Window.Width, cfg.Window.Height)
	if err != nil {
		a.window.Close()
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	a.input = input.New()

	client, err := remote.NewClient(cfg.Server.BaseURL, cfg.Server.Timeout, log)
	if err != nil {
		a.presenter.Close()
		a.window.Close()
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	rcfg := render.DefaultConfig()
	rcfg.Width = cfg.Render.Width
	rcfg.Height = cfg.Render.Height
	rcfg.Padding = cfg.Render.Padding
	renderer := render.New(rcfg, log)

	a.viewer = viewer.New(
		viewer.Config{IdleTimeout: cfg.Viewer.IdleTimeout},
		viewer.Services{
			Manifests: client,
			Views:     client,
			Models:    client,
			Uploader:  client,
		},
		renderer.RenderViews,
		log,
	)

	return a, nil
}

// Open loads the views for a part and makes it the active interaction.
// The first view is available when Open returns; the rest fill in
// the background.
func (a *App) Open(ctx context.Context, part viewer.PartID) error {
	a.loadFailed = false
	if err := a.viewer.EnsureViews(ctx, part); err != nil {
		// Keep the interaction: a later click retries the load.
		a.log.Error("failed to load part views", zap.String("part", string(part)), zap.Error(err))
		a.loadFailed = true
	}
	a.interaction = a.viewer.Open(part)
	a.window.SetTitle(fmt.Sprintf("Aerie Part Viewer - %s", part))
	a.shownIndex = -1
	a.shownReady = false
	return nil
}

// Run starts the main event loop.
func (a *App) Run() error {
	a.running = true

	for a.running {
		if a.input.Update() {
			a.running = false
			break
		}

		for _, event := range a.input.Events() {
			a.handleEvent(event)
		}

		a.refreshImage()
		a.presenter.Draw()
		a.window.SwapBuffers()
	}

	return nil
}

func (a *App) handleEvent(event input.Event) {
	switch event.Type {
	case input.EventQuit:
		a.running = false

	case input.EventKeyDown:
		if event.Key == 41 { // SDL_SCANCODE_ESCAPE
			a.running = false
		}

	case input.EventWindowResize:
		a.presenter.Resize(event.Width, event.Height)

	case input.EventVisibilityLost:
		a.viewer.VisibilityLost()
		a.shownReady = false

	case input.EventMouseDown:
		if event.Button == 1 && a.interaction != nil { // left button
			a.interaction.BeginDrag(event.MouseX)
		}

	case input.EventMouseMove:
		if a.interaction != nil {
			a.interaction.DragTo(event.MouseX)
		}

	case input.EventMouseUp:
		if event.Button == 1 && a.interaction != nil {
			a.interaction.EndDrag()
		}
	}
}

// refreshImage uploads the current view to the presenter when it changed
// and keeps the loading/failure visuals in step with the cache.
func (a *App) refreshImage() {
	if a.interaction == nil {
		return
	}

	index := a.interaction.Index()
	data, ready := a.interaction.CurrentImage()

	switch presentMode(ready, a.shownReady, a.loadFailed) {
	case viewModeLoading:
		// Previous view stays up, dimmed, until the new one arrives.
		a.presenter.SetDimmed(true)
		return
	case viewModeFailure:
		a.presenter.SetFailed(true)
		return
	}

	a.presenter.SetDimmed(false)
	a.presenter.SetFailed(false)
	a.loadFailed = false

	if a.shownReady && index == a.shownIndex {
		return
	}

	if err := a.presenter.SetImage(data); err != nil {
		a.log.Warn("failed to present view image",
			zap.Int("index", index),
			zap.Error(err))
		return
	}
	a.shownIndex = index
	a.shownReady = true
}

// Close cleans up application resources.
func (a *App) Close() {
	a.log.Info("closing application")
	if a.viewer != nil {
		a.viewer.Close()
	}
	if a.presenter != nil {
		a.presenter.Close()
	}
	if a.window != nil {
		a.window.Close()
	}
}
