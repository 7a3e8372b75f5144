package service_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HugPhiluu/PhilCard/internal/service"
)

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	store := service.NewFileStore(dir)

	files, err := store.List()
	require.NoError(t, err)
	require.Empty(t, files)

	require.NoError(t, store.Write("a.png", []byte("first")))
	require.NoError(t, store.Write("a.png", []byte("second")))

	info, err := store.Stat("a.png")
	require.NoError(t, err)
	require.Equal(t, int64(len("second")), info.Size)

	files, err = store.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "a.png", files[0].Name)

	for _, bad := range []string{"", "../a.png", "sub/a.png", ".hidden", `..\a.png`} {
		_, err := store.Path(bad)
		require.ErrorIs(t, err, service.ErrInvalid, bad)
	}

	require.NoError(t, store.Remove("a.png"))
	require.ErrorIs(t, store.Remove("a.png"), service.ErrNotFound)
	_, err = store.Stat("a.png")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestDetectImageFormat(t *testing.T) {
	ext, err := service.DetectImageFormatExtForTest(pngBytes(t, 2, 2))
	require.NoError(t, err)
	require.Equal(t, "png", ext)

	ext, err = service.DetectImageFormatExtForTest(jpegBytes(t, 2, 2))
	require.NoError(t, err)
	require.Equal(t, "jpg", ext)

	ext, err = service.DetectImageFormatExtForTest([]byte("GIF89a......"))
	require.NoError(t, err)
	require.Equal(t, "gif", ext)

	ext, err = service.DetectImageFormatExtForTest([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "))
	require.NoError(t, err)
	require.Equal(t, "webp", ext)

	_, err = service.DetectImageFormatExtForTest([]byte("<svg></svg>"))
	require.ErrorIs(t, err, service.ErrInvalid)
}

func TestCropSquare(t *testing.T) {
	cropped, err := service.CropSquareForTest(pngBytes(t, 30, 12))
	require.NoError(t, err)
	w, h := imageSize(t, cropped)
	require.Equal(t, 12, w)
	require.Equal(t, 12, h)

	cropped, err = service.CropSquareForTest(jpegBytes(t, 9, 25))
	require.NoError(t, err)
	w, h = imageSize(t, cropped)
	require.Equal(t, 9, w)
	require.Equal(t, 9, h)
}

func TestCropSquare_RejectsHugeCanvas(t *testing.T) {
	// header plus logical screen descriptor declaring 65535x65535
	header := []byte("GIF89a\xff\xff\xff\xff\x00\x00\x00")
	_, err := service.CropSquareForTest(header)
	require.ErrorIs(t, err, service.ErrInvalid)
	require.ErrorContains(t, err, "too large")
}
