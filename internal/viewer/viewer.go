// Package viewer is a debug window that draws a map in projected space.
package viewer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"
	"time"

	"tilemap/internal/mapedit"
	"tilemap/pkg/geom"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.design/x/clipboard"
)

const (
	panelHeight = 64
	margin      = 8
)

var (
	clipboardOnce sync.Once
	clipboardErr  error
)

// copyText puts s on the system clipboard.
func copyText(s string) error {
	clipboardOnce.Do(func() { clipboardErr = clipboard.Init() })
	if clipboardErr != nil {
		return clipboardErr
	}
	clipboard.Write(clipboard.FmtText, []byte(s))
	return nil
}

// Options configures the viewer window.
type Options struct {
	Title     string
	Width     int
	Height    int
	ShowGrid  bool
	ShowEdges bool
}

// Viewer is the ebiten game drawing one map.
type Viewer struct {
	editor *mapedit.Editor
	opts   Options

	width, height int
	view          mapedit.View
	canvas        *ebiten.Image

	hovered geom.CPos
	hoverOK bool

	buttons []*Button
}

// New creates a viewer for the editor's map.
func New(editor *mapedit.Editor, opts Options) *Viewer {
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 720
	}
	v := &Viewer{editor: editor, opts: opts}

	v.buttons = []*Button{
		{Text: "Save", Primary: true, OnClick: v.save},
		{Text: "Grid", OnClick: func() {
			v.opts.ShowGrid = !v.opts.ShowGrid
			v.canvas = nil
		}},
		{Text: "Copy UID", OnClick: func() { v.copy(editor.Map().UID) }},
	}
	return v
}

// Run opens the window and blocks until it closes.
func (v *Viewer) Run() error {
	ebiten.SetWindowSize(v.opts.Width, v.opts.Height)
	ebiten.SetWindowTitle(v.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(v)
}

// Layout keeps the logical screen the same size as the window.
func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != v.width || outsideHeight != v.height {
		v.width, v.height = outsideWidth, outsideHeight
		m := v.editor.Map()
		v.view = mapedit.FitView(m.Grid.Type, m.Bounds, v.width, v.height-panelHeight, margin)
		v.canvas = nil

		for i, b := range v.buttons {
			b.W, b.H = 90, 24
			b.X = v.width - (len(v.buttons)-i)*(b.W+margin)
			b.Y = v.height - panelHeight + (panelHeight-b.H)/2
		}
	}
	return v.width, v.height
}

// Update handles input.
func (v *Viewer) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	if v.editor.Apply() {
		v.canvas = nil
	}

	for _, b := range v.buttons {
		if b.Update() {
			return nil
		}
	}

	m := v.editor.Map()
	mx, my := ebiten.CursorPosition()
	v.hoverOK = false
	if my < v.height-panelHeight {
		if c, ok := mapedit.TopCell(m, v.view.ProjectedAt(mx, my)); ok {
			v.hovered, v.hoverOK = c, true
		}
	}

	shift := ebiten.IsKeyPressed(ebiten.KeyShift)
	if v.hoverOK {
		switch {
		case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) && shift:
			v.paint("Water")
		case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) && shift:
			v.paint("Clear")
		case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
			v.editor.ChangeHeight(v.hovered, 1)
		case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight):
			v.editor.ChangeHeight(v.hovered, -1)
		}
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyG):
		v.opts.ShowGrid = !v.opts.ShowGrid
		v.canvas = nil
	case inpututil.IsKeyJustPressed(ebiten.KeyE):
		v.opts.ShowEdges = !v.opts.ShowEdges
		v.canvas = nil
	case inpututil.IsKeyJustPressed(ebiten.KeyC) && v.hoverOK:
		v.copy(fmt.Sprintf("%d,%d", v.hovered.X, v.hovered.Y))
	case inpututil.IsKeyJustPressed(ebiten.KeyU):
		v.copy(m.UID)
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		v.save()
	}

	if v.editor.Dirty() {
		v.canvas = nil
	}
	return nil
}

func (v *Viewer) paint(terrain string) {
	if err := v.editor.PaintTerrain(v.hovered, terrain); err != nil {
		v.editor.SetStatus(err.Error())
	}
}

func (v *Viewer) copy(s string) {
	if err := copyText(s); err != nil {
		log.Printf("Clipboard unavailable: %v", err)
		v.editor.SetStatus("clipboard unavailable")
		return
	}
	v.editor.SetStatus("copied " + s)
}

func (v *Viewer) save() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := v.editor.Save(ctx); err != nil {
		v.editor.SetStatus("save failed: " + err.Error())
	}
}

// Draw renders the map, the hovered cell and the status panel.
func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(ColorBackground)

	if v.canvas == nil {
		v.canvas = ebiten.NewImage(max(v.width, 1), max(v.height-panelHeight, 1))
		v.drawMap(v.canvas)
		v.editor.ClearDirty()
	}
	screen.DrawImage(v.canvas, nil)

	if v.hoverOK {
		m := v.editor.Map()
		for _, p := range m.ProjectedCellsCovering(v.hovered.ToMPos(m.Grid.Type)) {
			strokeCell(screen, v.view.CellRect(p), ColorHover)
		}
	}

	v.drawPanel(screen)
}

// drawMap paints every projected cell inside the bounds with the colours
// of the cell drawn on top of it.
func (v *Viewer) drawMap(dst *ebiten.Image) {
	m := v.editor.Map()
	for pv := m.Bounds.Top(); pv < m.Bounds.Bottom(); pv++ {
		for pu := m.Bounds.Left(); pu < m.Bounds.Right(); pu++ {
			p := geom.PPos{U: pu, V: pv}
			c, ok := mapedit.TopCell(m, p)
			if !ok {
				continue
			}
			left, right := m.CellColors(c.ToMPos(m.Grid.Type))
			r := v.view.CellRect(p)
			half := r.Dx() / 2
			fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+half, r.Max.Y), left)
			fillRect(dst, image.Rect(r.Min.X+half, r.Min.Y, r.Max.X, r.Max.Y), right)
			if v.opts.ShowGrid && r.Dx() >= 6 {
				strokeCell(dst, r, ColorGrid)
			}
		}
	}

	if v.opts.ShowEdges {
		for _, c := range m.AllEdgeCells {
			for _, p := range m.ProjectedCellsCovering(c.ToMPos(m.Grid.Type)) {
				strokeCell(dst, v.view.CellRect(p), ColorEdge)
			}
		}
	}
}

func (v *Viewer) drawPanel(screen *ebiten.Image) {
	m := v.editor.Map()
	y := v.height - panelHeight
	DrawPanel(screen, 0, y, v.width, panelHeight)

	title := m.Title
	if title == "" {
		title = "(untitled)"
	}
	mode := "local"
	if v.editor.Remote() {
		mode = "remote"
	}
	DrawText(screen, fmt.Sprintf("%s  %s  %s %dx%d  [%s]  %s", title, m.TilesetID, m.Grid.Type,
		m.MapSize.Width, m.MapSize.Height, mode, m.UID), margin, y+4)

	if v.hoverOK {
		DrawText(screen, v.editor.Describe(v.hovered), margin, y+22)
	}

	status := v.editor.Status()
	if status == "" {
		status = "click raise  right-click lower  shift paint  G grid  E edges  C copy cell  U copy uid  S save"
	}
	DrawText(screen, status, margin, y+40)

	for _, b := range v.buttons {
		b.Draw(screen)
	}
}

func fillRect(dst *ebiten.Image, r image.Rectangle, clr color.Color) {
	vector.DrawFilledRect(dst, float32(r.Min.X), float32(r.Min.Y), float32(r.Dx()), float32(r.Dy()), clr, false)
}

func strokeCell(dst *ebiten.Image, r image.Rectangle, clr color.Color) {
	vector.StrokeRect(dst, float32(r.Min.X), float32(r.Min.Y), float32(r.Dx()), float32(r.Dy()), 1, clr, false)
}
