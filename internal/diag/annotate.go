package diag

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	markColor    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	textColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	outlineColor = color.RGBA{R: 0, G: 0, B: 0, A: 200}
)

// markRadius is half the side of the box drawn around each target.
const markRadius = 6

// Annotate draws every profile target on img, a capture of the screen
// rectangle starting at imgOrigin. clientOrigin is the screen position of
// the window's client area and anchors client-origin profiles.
func Annotate(img image.Image, imgOrigin, clientOrigin image.Point, profile *model.CoordinateProfile) *image.RGBA {
	rgba := toRGBA(img)
	if profile == nil {
		return rgba
	}
	base := image.Point{}
	if profile.Origin() == model.OriginClient {
		base = clientOrigin
	}

	targets := profile.Targets()
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)

	b := rgba.Bounds()
	for _, name := range names {
		pt := targets[name]
		x := base.X + pt.X - imgOrigin.X + b.Min.X
		y := base.Y + pt.Y - imgOrigin.Y + b.Min.Y
		drawRectangle(rgba, x-markRadius, y-markRadius, x+markRadius+1, y+markRadius+1, markColor)
		drawCross(rgba, x, y, markColor)
		drawTextWithOutline(rgba, name, x, y-markRadius-10, textColor, outlineColor)
	}
	return rgba
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

func setIn(img *image.RGBA, x, y int, c color.Color) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.Set(x, y, c)
	}
}

// drawRectangle draws the outline of [x1,x2)x[y1,y2), clipped to img.
func drawRectangle(img *image.RGBA, x1, y1, x2, y2 int, c color.Color) {
	if x2 <= x1 || y2 <= y1 {
		return
	}
	for x := x1; x < x2; x++ {
		setIn(img, x, y1, c)
		setIn(img, x, y2-1, c)
	}
	for y := y1; y < y2; y++ {
		setIn(img, x1, y, c)
		setIn(img, x2-1, y, c)
	}
}

func drawCross(img *image.RGBA, x, y int, c color.Color) {
	for d := -2; d <= 2; d++ {
		setIn(img, x+d, y, c)
		setIn(img, x, y+d, c)
	}
}

// drawTextWithOutline centres text horizontally on x with its baseline at y.
func drawTextWithOutline(img *image.RGBA, text string, x, y int, fg, outline color.Color) {
	// basicfont.Face7x13 is 7 pixels per character.
	offsetX := x - len(text)*7/2

	stroke := func(dx, dy int, c color.Color) {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(c),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(offsetX+dx, y+dy),
		}
		d.DrawString(text)
	}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx != 0 || dy != 0 {
				stroke(dx, dy, outline)
			}
		}
	}
	stroke(0, 0, fg)
}
