// Package card renders the shareable victory card: a small PNG summarising a
// finished playthrough.
package card

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ayangquest/questapi/internal/quest"
)

const (
	Width  = 480
	Height = 270

	lineHeight = 18
	margin     = 24
)

var (
	background = color.RGBA{R: 0x1b, G: 0x12, B: 0x2e, A: 0xff}
	frame      = color.RGBA{R: 0xf5, G: 0xc5, B: 0x18, A: 0xff}
	ink        = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	muted      = color.RGBA{R: 0xb8, G: 0xa9, B: 0xd9, A: 0xff}
)

// Summary is what the card shows.
type Summary struct {
	PlayerName   string
	CreatorName  string
	Attempts     int
	WrongAnswers int
	Reward       quest.Reward
}

// Render draws the card and encodes it as PNG.
func Render(s Summary) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(frame), image.Point{}, draw.Src)
	inner := image.Rect(4, 4, Width-4, Height-4)
	draw.Draw(img, inner, image.NewUniform(background), image.Point{}, draw.Src)

	y := margin + lineHeight
	line := func(c color.Color, text string) {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(c),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(margin, y),
		}
		d.DrawString(truncate(text, (Width-2*margin)/basicfont.Face7x13.Advance))
		y += lineHeight
	}

	line(frame, "VICTORY!")
	y += lineHeight / 2
	line(ink, fmt.Sprintf("%s defeated all %d monsters", s.PlayerName, quest.MonsterCount))
	line(muted, "A quest made by "+s.CreatorName)
	y += lineHeight / 2
	line(ink, fmt.Sprintf("Attempts: %d", s.Attempts))
	line(ink, fmt.Sprintf("Wrong answers this run: %d", s.WrongAnswers))
	y += lineHeight / 2
	if s.Reward.Type == quest.RewardText {
		line(frame, "Reward:")
		for _, l := range wrap(s.Reward.Value, (Width-2*margin)/basicfont.Face7x13.Advance, 4) {
			line(ink, l)
		}
	} else {
		line(frame, "Reward: a picture, open the game to see it")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

// basicfont only covers ASCII; anything else is drawn as '?'.
func asciiOnly(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r < 0x20 || r > 0x7e {
			out[i] = '?'
		}
	}
	return string(out)
}

func truncate(s string, n int) string {
	s = asciiOnly(s)
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// wrap splits s into at most maxLines lines of width n, breaking on spaces.
func wrap(s string, n, maxLines int) []string {
	s = asciiOnly(s)
	var lines []string
	for len(s) > 0 && len(lines) < maxLines {
		if len(s) <= n {
			lines = append(lines, s)
			return lines
		}
		cut := n
		for i := n; i > 0; i-- {
			if s[i] == ' ' {
				cut = i
				break
			}
		}
		lines = append(lines, s[:cut])
		s = trimLeadingSpace(s[cut:])
	}
	if len(s) > 0 && len(lines) > 0 {
		lines[len(lines)-1] = truncate(lines[len(lines)-1]+" "+s, n)
	}
	return lines
}

func trimLeadingSpace(s string) string {
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	return s
}
