package assetgen

import (
	"bytes"
	"context"
	"image/gif"
	"image/jpeg"
	"image/png"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

func (p *Project) imageStages() []Stage {
	stages := append([]Stage{Size("images - in")}, p.newer(CategoryImages)...)
	return append(stages,
		Imagemin(p.Config.Images),
		Size("images - out"),
		Dest(p.Fs, p.root, p.Spec(CategoryImages).Dest),
	)
}

// Imagemin re-encodes every image with the encoder for its format and keeps
// whichever of the original and the re-encoded bytes is smaller.  Files of
// unknown formats pass through untouched.
func Imagemin(opts ImageOptions) Stage {
	return EachAsset("imagemin", func(ctx context.Context, a *Asset) error {
		var out []byte
		var err error
		switch strings.ToLower(a.Ext()) {
		case ".jpg", ".jpeg":
			out, err = optimizeJPEG(a.Content, opts)
		case ".png":
			out, err = optimizePNG(a.Content, opts)
		case ".gif":
			out, err = optimizeGIF(a.Content, opts)
		case ".svg":
			out, err = optimizeSVG(a.Content, opts)
		default:
			return nil
		}
		if err != nil {
			return err
		}
		if len(out) < len(a.Content) {
			Logger(ctx).Debug().
				Str("path", a.Path).
				Int("before", len(a.Content)).
				Int("after", len(out)).
				Msg("optimized")
			a.Content = out
		}
		return nil
	})
}

func optimizeJPEG(src []byte, opts ImageOptions) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, eris.Wrap(err, "invalid jpeg")
	}
	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, eris.Wrap(err, "failed to encode jpeg")
	}
	return buf.Bytes(), nil
}

// pngCompression maps an optipng style optimization level (0-7) to a zlib
// compression level.
func pngCompression(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.DefaultCompression
	case level <= 2:
		return png.BestSpeed
	default:
		return png.BestCompression
	}
}

func optimizePNG(src []byte, opts ImageOptions) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, eris.Wrap(err, "invalid png")
	}
	enc := png.Encoder{CompressionLevel: pngCompression(opts.PNGOptimizationLevel)}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return nil, eris.Wrap(err, "failed to encode png")
	}
	return buf.Bytes(), nil
}

func optimizeGIF(src []byte, _ ImageOptions) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(src))
	if err != nil {
		return nil, eris.Wrap(err, "invalid gif")
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, eris.Wrap(err, "failed to encode gif")
	}
	return buf.Bytes(), nil
}

var (
	svgMinifier = newSVGMinifier()
	svgRootRe   = regexp.MustCompile(`(?s)<svg\b[^>]*>`)
	svgAttrRe   = regexp.MustCompile(`\s(viewBox|width|height)="([^"]*)"`)
	svgIDRe     = regexp.MustCompile(`\sid="([^"]+)"`)
	viewBoxRe   = regexp.MustCompile(`\sviewBox="[^"]*"`)
)

func newSVGMinifier() *minify.M {
	m := minify.New()
	m.Add("image/svg+xml", &svg.Minifier{})
	return m
}

func optimizeSVG(src []byte, opts ImageOptions) ([]byte, error) {
	out := src
	if opts.SVGRemoveViewBox {
		out = removeRedundantViewBox(out)
	}
	if opts.SVGCleanupIDs {
		out = removeUnusedIDs(out)
	}
	minified, err := svgMinifier.Bytes("image/svg+xml", out)
	if err != nil {
		return nil, eris.Wrap(err, "failed to minify svg")
	}
	return minified, nil
}

// removeRedundantViewBox drops the root viewBox when it is "0 0 w h" and
// matches the width and height attributes exactly.
func removeRedundantViewBox(src []byte) []byte {
	loc := svgRootRe.FindIndex(src)
	if loc == nil {
		return src
	}
	tag := src[loc[0]:loc[1]]
	attrs := map[string]string{}
	for _, m := range svgAttrRe.FindAllSubmatch(tag, -1) {
		attrs[string(m[1])] = string(m[2])
	}
	viewBox, ok := attrs["viewBox"]
	if !ok {
		return src
	}
	fields := strings.Fields(strings.ReplaceAll(viewBox, ",", " "))
	if len(fields) != 4 || fields[0] != "0" || fields[1] != "0" {
		return src
	}
	if !samePx(fields[2], attrs["width"]) || !samePx(fields[3], attrs["height"]) {
		return src
	}
	newTag := viewBoxRe.ReplaceAll(tag, nil)
	out := make([]byte, 0, len(src))
	out = append(out, src[:loc[0]]...)
	out = append(out, newTag...)
	return append(out, src[loc[1]:]...)
}

func samePx(a, b string) bool {
	b = strings.TrimSuffix(b, "px")
	fa, err1 := strconv.ParseFloat(a, 64)
	fb, err2 := strconv.ParseFloat(b, 64)
	return err1 == nil && err2 == nil && fa == fb
}

// removeUnusedIDs drops id attributes that nothing in the document refers to
// with #id or url(#id).
func removeUnusedIDs(src []byte) []byte {
	return svgIDRe.ReplaceAllFunc(src, func(m []byte) []byte {
		id := svgIDRe.FindSubmatch(m)[1]
		if bytes.Contains(src, append([]byte("#"), id...)) {
			return m
		}
		return nil
	})
}
