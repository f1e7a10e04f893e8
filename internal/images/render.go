package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"contentpipe/internal/config"
	"contentpipe/internal/fileutil"
	"contentpipe/internal/logging"
)

const (
	// PlaceholderRef is the site path used when no image was rendered.
	PlaceholderRef = "/images/blog/placeholder.jpg"
	// SitePrefix is the public path under which featured images are served.
	SitePrefix = "/images/blog/"

	Width  = 1200
	Height = 630
)

var pillarColors = map[string]color.RGBA{
	"news":        {R: 0x00, G: 0x66, B: 0xFF, A: 0xFF},
	"local-ai":    {R: 0x7B, G: 0x2C, B: 0xBF, A: 0xFF},
	"prompting":   {R: 0xFF, G: 0xB7, B: 0x03, A: 0xFF},
	"experiments": {R: 0xD9, G: 0x04, B: 0x29, A: 0xFF},
}

var slate = color.RGBA{R: 0x47, G: 0x55, B: 0x69, A: 0xFF}

// PillarColor returns the accent colour for a pillar, slate for unknown ones.
func PillarColor(pillar string) color.RGBA {
	if c, ok := pillarColors[strings.ToLower(strings.TrimSpace(pillar))]; ok {
		return c
	}
	return slate
}

// Result describes a rendered image.
type Result struct {
	Ref       string
	LocalPath string
	MirrorURL string
}

// Renderer writes featured images.
type Renderer struct {
	dir    string
	mirror Mirror
	logger *slog.Logger
}

// NewRenderer writes into cfg.ImagesDir(). mirror may be nil.
func NewRenderer(cfg *config.Config, mirror Mirror, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Renderer{
		dir:    cfg.ImagesDir(),
		mirror: mirror,
		logger: logging.NewComponentLogger(logger, "images"),
	}
}

// Render draws the card for slug and pillar. A mirror failure is logged and
// does not fail the render.
func (r *Renderer) Render(ctx context.Context, slug, pillar string) (Result, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" || strings.ContainsAny(slug, `/\`) {
		return Result{}, fmt.Errorf("render image: invalid slug %q", slug)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Card(PillarColor(pillar))); err != nil {
		return Result{}, fmt.Errorf("render image: encode: %w", err)
	}
	name := slug + ".png"
	local := filepath.Join(r.dir, name)
	if err := fileutil.WriteFileAtomic(local, buf.Bytes(), 0o644); err != nil {
		return Result{}, fmt.Errorf("render image: %w", err)
	}
	res := Result{Ref: SitePrefix + name, LocalPath: local}
	if r.mirror != nil {
		url, err := r.mirror.Upload(ctx, name, local)
		if err != nil {
			logging.WarnWithContext(r.logger, "image mirror upload failed", "image_mirror_failed",
				logging.String("slug", slug),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check images.s3_bucket and AWS credentials"),
				logging.String(logging.FieldImpact, "image served from the site only"),
			)
		} else {
			res.MirrorURL = url
		}
	}
	r.logger.Debug("featured image rendered", logging.String("path", local))
	return res, nil
}

// LocalPath maps a site reference such as /images/blog/x.png to the file
// under the public directory. Placeholder and remote refs return "".
func LocalPath(cfg *config.Config, ref string) string {
	if ref == "" || ref == PlaceholderRef || !strings.HasPrefix(ref, SitePrefix) {
		return ""
	}
	return filepath.Join(cfg.Paths.PublicDir, filepath.FromSlash(path.Clean(ref)))
}

// Card draws a vertical gradient from the accent colour into a dark base
// with a lighter band across the lower third.
func Card(accent color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	base := color.RGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xFF}
	bandTop, bandBottom := Height*2/3, Height*2/3+12
	for y := 0; y < Height; y++ {
		c := blend(accent, base, float64(y)/float64(Height-1))
		if y >= bandTop && y < bandBottom {
			c = blend(c, color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}, 0.35)
		}
		for x := 0; x < Width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x)*(1-t) + float64(y)*t + 0.5)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xFF}
}
