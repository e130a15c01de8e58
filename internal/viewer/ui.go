package viewer

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Colors used in the UI
var (
	ColorBackground     = color.RGBA{20, 20, 30, 255}
	ColorPanel          = color.RGBA{30, 35, 50, 230}
	ColorPrimary        = color.RGBA{70, 130, 180, 255} // Steel blue
	ColorPrimaryHover   = color.RGBA{100, 160, 210, 255}
	ColorSecondary      = color.RGBA{60, 60, 80, 255}
	ColorSecondaryHover = color.RGBA{80, 80, 100, 255}
	ColorBorder         = color.RGBA{60, 65, 80, 255}
	ColorHover          = color.RGBA{255, 255, 255, 255}
	ColorEdge           = color.RGBA{220, 60, 60, 255}
	ColorGrid           = color.RGBA{0, 0, 0, 40}
)

// Button represents a clickable button.
type Button struct {
	X, Y, W, H int
	Text       string
	OnClick    func()
	Primary    bool
	hovered    bool
}

// Contains reports whether a screen position is over the button.
func (b *Button) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.W && y >= b.Y && y < b.Y+b.H
}

// Update handles button input and reports whether the button took the click.
func (b *Button) Update() bool {
	mx, my := ebiten.CursorPosition()
	b.hovered = b.Contains(mx, my)

	if b.hovered && inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		if b.OnClick != nil {
			b.OnClick()
		}
		return true
	}
	return false
}

// Draw renders the button.
func (b *Button) Draw(screen *ebiten.Image) {
	bgColor := ColorSecondary
	switch {
	case b.Primary && b.hovered:
		bgColor = ColorPrimaryHover
	case b.Primary:
		bgColor = ColorPrimary
	case b.hovered:
		bgColor = ColorSecondaryHover
	}

	vector.DrawFilledRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), bgColor, false)
	vector.StrokeRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), 1, ColorBorder, false)
	DrawTextCentered(screen, b.Text, b.X+b.W/2, b.Y+b.H/2-8)
}

// DrawPanel draws a panel background.
func DrawPanel(screen *ebiten.Image, x, y, w, h int) {
	vector.DrawFilledRect(screen, float32(x), float32(y), float32(w), float32(h), ColorPanel, false)
	vector.StrokeRect(screen, float32(x), float32(y), float32(w), float32(h), 1, ColorBorder, false)
}

// DrawText draws text at a position.
func DrawText(screen *ebiten.Image, text string, x, y int) {
	ebitenutil.DebugPrintAt(screen, text, x, y)
}

// DrawTextCentered draws text centered at a position.
func DrawTextCentered(screen *ebiten.Image, text string, x, y int) {
	w := len(text) * 6
	ebitenutil.DebugPrintAt(screen, text, x-w/2, y)
}
