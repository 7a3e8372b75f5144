package service

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
)

type imageFormat struct {
	ext         string
	contentType string
}

var (
	formatPNG  = imageFormat{ext: "png", contentType: "image/png"}
	formatJPEG = imageFormat{ext: "jpg", contentType: "image/jpeg"}
	formatGIF  = imageFormat{ext: "gif", contentType: "image/gif"}
	formatWebP = imageFormat{ext: "webp", contentType: "image/webp"}
)

// detectImageFormat sniffs magic bytes; the client's declared type is ignored.
func detectImageFormat(data []byte) (imageFormat, error) {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}):
		return formatPNG, nil
	case len(data) >= 3 && data[0] == 0xff && data[1] == 0xd8 && data[2] == 0xff:
		return formatJPEG, nil
	case len(data) >= 6 && (bytes.Equal(data[:6], []byte("GIF87a")) || bytes.Equal(data[:6], []byte("GIF89a"))):
		return formatGIF, nil
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return formatWebP, nil
	}
	return imageFormat{}, invalid("file", "unsupported image type")
}

// maxImagePixels bounds decoded uploads; a small file can declare a huge canvas.
const maxImagePixels = 25_000_000

// isIcon accepts the upload formats plus .ico, which favicon endpoints serve.
func isIcon(data []byte) bool {
	if _, err := detectImageFormat(data); err == nil {
		return true
	}
	return len(data) >= 4 && bytes.Equal(data[:4], []byte{0x00, 0x00, 0x01, 0x00})
}

// cropSquare cuts the largest centered square out of data and re-encodes it in
// the same format. WebP has no stdlib encoder and is returned unchanged.
func cropSquare(data []byte, format imageFormat) ([]byte, error) {
	if format == formatWebP {
		return data, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, invalid("file", "cannot decode image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, invalid("file", "image dimensions too large")
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, invalid("file", "cannot decode image")
	}

	b := src.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if side == b.Dx() && side == b.Dy() {
		return data, nil
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, image.Pt(x0, y0), draw.Src)

	var buf bytes.Buffer
	switch format {
	case formatPNG:
		err = png.Encode(&buf, dst)
	case formatJPEG:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	case formatGIF:
		err = gif.Encode(&buf, dst, nil)
	default:
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}
