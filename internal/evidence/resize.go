package evidence

import (
	"context"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// ResizeSummary reports what ResizeDir did.
type ResizeSummary struct {
	Resized int
	Skipped int
	Failed  int
}

var resizableExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// ResizeDir rewrites every image in srcDir scaled to width pixels, keeping
// the aspect ratio, into dstDir (which may equal srcDir). Non-image files and
// images already no wider than width are left alone. Per-file failures are
// logged and counted.
func ResizeDir(ctx context.Context, srcDir, dstDir string, width int) (ResizeSummary, error) {
	var sum ResizeSummary
	if width < 1 {
		return sum, eris.Errorf("evidence: invalid resize width %d", width)
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return sum, &NotFoundError{Root: srcDir, Cause: err}
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return sum, eris.Wrapf(err, "evidence: create %s", dstDir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	log := zap.L().With(zap.String("src", srcDir), zap.String("dst", dstDir))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "evidence: resize")
		}
		if !resizableExts[strings.ToLower(filepath.Ext(name))] {
			sum.Skipped++
			continue
		}

		resized, err := resizeFile(filepath.Join(srcDir, name), filepath.Join(dstDir, name), width)
		if err != nil {
			log.Warn("resize failed", zap.String("file", name), zap.Error(err))
			sum.Failed++
			continue
		}
		if resized {
			sum.Resized++
		} else {
			sum.Skipped++
		}
	}

	log.Info("resize complete",
		zap.Int("resized", sum.Resized),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

func resizeFile(src, dst string, width int) (bool, error) {
	f, err := os.Open(src)
	if err != nil {
		return false, eris.Wrapf(err, "evidence: open %s", src)
	}
	img, format, err := image.Decode(f)
	f.Close() //nolint:errcheck
	if err != nil {
		return false, eris.Wrapf(err, "evidence: decode %s", src)
	}

	b := img.Bounds()
	if b.Dx() <= width {
		if src == dst {
			return false, nil
		}
		return false, copyFile(src, dst)
	}

	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(out, out.Bounds(), img, b, draw.Over, nil)

	return true, writeImage(dst, out, format)
}

func writeImage(path string, img image.Image, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "evidence: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	switch format {
	case "png":
		err = png.Encode(f, img)
	case "gif":
		err = gif.Encode(f, img, nil)
	case "bmp":
		err = bmp.Encode(f, img)
	case "tiff":
		err = tiff.Encode(f, img, nil)
	default:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return eris.Wrapf(err, "evidence: encode %s", path)
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "evidence: open %s", src)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "evidence: create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return eris.Wrapf(err, "evidence: copy %s", src)
	}
	return out.Close()
}
