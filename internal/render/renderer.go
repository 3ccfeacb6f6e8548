package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	canvasSize = 1080

	photoHeight = 560
	marginX     = 60

	headlineSize = 64.0
	bodySize     = 36.0
	brandSize    = 30.0
)

// Renderer composes the branded 1080x1080 news card. Render always returns a
// valid file path: an unreachable source image degrades to the flat branded
// background, never an error the pipeline has to handle.
type Renderer struct {
	outputDir string
	fontPath  string
	brandName string
	client    *resty.Client
}

// NewRenderer creates a renderer writing PNGs into outputDir. fontPath may be
// empty, in which case the built-in face is used.
func NewRenderer(outputDir, fontPath, brandName string) *Renderer {
	return &Renderer{
		outputDir: outputDir,
		fontPath:  fontPath,
		brandName: brandName,
		client: resty.New().
			SetTimeout(20*time.Second).
			SetHeader("User-Agent", "TrendScope-Bot/1.0"),
	}
}

// Render draws the card and returns the local PNG path
func (r *Renderer) Render(headline, bodyFacts, imageURL string) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	dc := gg.NewContext(canvasSize, canvasSize)

	// Background
	dc.SetRGB255(245, 246, 250)
	dc.Clear()

	// Photo panel, branded flat fill when the photo is unavailable
	photo := r.fetchImage(imageURL)
	if photo != nil {
		drawCover(dc, photo, 0, 0, canvasSize, photoHeight)
	} else {
		dc.SetRGB255(29, 78, 216)
		dc.DrawRectangle(0, 0, canvasSize, photoHeight)
		dc.Fill()
	}

	// Scrim so the headline stays readable over any photo
	dc.SetRGBA255(17, 24, 39, 140)
	dc.DrawRectangle(0, photoHeight-160, canvasSize, 160)
	dc.Fill()

	r.setFont(dc, headlineSize)
	dc.SetRGB255(255, 255, 255)
	drawWrapped(dc, strings.ToUpper(headline), marginX, photoHeight-140, canvasSize-2*marginX, headlineSize*1.15, 2)

	// Body facts
	r.setFont(dc, bodySize)
	dc.SetRGB255(55, 65, 81)
	y := float64(photoHeight) + 60
	for _, line := range bodyLines(bodyFacts) {
		y = drawWrapped(dc, line, marginX, y, canvasSize-2*marginX, bodySize*1.3, 2)
		y += 14
	}

	// Brand bar
	dc.SetRGB255(239, 68, 68)
	dc.DrawRectangle(0, canvasSize-90, canvasSize, 90)
	dc.Fill()
	r.setFont(dc, brandSize)
	dc.SetRGB255(255, 255, 255)
	dc.DrawStringAnchored(r.brandName, canvasSize/2, canvasSize-45, 0.5, 0.35)

	path := filepath.Join(r.outputDir, fmt.Sprintf("news_%s.png", uuid.New().String()))
	if err := dc.SavePNG(path); err != nil {
		return "", fmt.Errorf("saving card png: %w", err)
	}
	return path, nil
}

func (r *Renderer) setFont(dc *gg.Context, size float64) {
	if r.fontPath == "" {
		return
	}
	if err := dc.LoadFontFace(r.fontPath, size); err != nil {
		logrus.Debugf("Failed to load font %s: %v", r.fontPath, err)
	}
}

// fetchImage downloads and decodes the source image, nil on any failure
func (r *Renderer) fetchImage(imageURL string) image.Image {
	if imageURL == "" {
		return nil
	}

	resp, err := r.client.R().Get(imageURL)
	if err != nil || resp.StatusCode() != 200 {
		logrus.Debugf("Source image fetch failed for %s, using fallback background", imageURL)
		return nil
	}

	img, _, err := image.Decode(bytes.NewReader(resp.Body()))
	if err != nil {
		logrus.Debugf("Source image decode failed for %s: %v", imageURL, err)
		return nil
	}
	return img
}

// drawCover scales the image to fill the target box, cropping overflow
func drawCover(dc *gg.Context, img image.Image, x, y, w, h float64) {
	bounds := img.Bounds()
	iw, ih := float64(bounds.Dx()), float64(bounds.Dy())
	if iw == 0 || ih == 0 {
		return
	}

	scale := w / iw
	if h/ih > scale {
		scale = h / ih
	}

	dc.Push()
	dc.DrawRectangle(x, y, w, h)
	dc.Clip()
	dc.Translate(x+(w-iw*scale)/2, y+(h-ih*scale)/2)
	dc.Scale(scale, scale)
	dc.DrawImage(img, 0, 0)
	dc.Pop()
	// Pop keeps the active mask, so drop the clip explicitly
	dc.ResetClip()
}

// drawWrapped draws word-wrapped text limited to maxLines, returning the next y
func drawWrapped(dc *gg.Context, text string, x, y, maxWidth, lineHeight float64, maxLines int) float64 {
	lines := dc.WordWrap(text, maxWidth)
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	for _, line := range lines {
		dc.DrawString(line, x, y)
		y += lineHeight
	}
	return y
}

func bodyLines(bodyFacts string) []string {
	var lines []string
	for _, line := range strings.Split(bodyFacts, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > 4 {
		lines = lines[:4]
	}
	return lines
}
