package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// MaxImageBytes bounds a single uploaded picture.
const MaxImageBytes = 5 << 20

var ErrNotAnImage = errors.New("storage: upload is not a supported image")

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// StoreImage sniffs fh, writes it under dir with a random name and returns
// its public URL. Only jpeg, png, gif and webp are accepted.
func StoreImage(ctx context.Context, disk Disk, dir string, fh *multipart.FileHeader) (string, error) {
	if fh.Size > MaxImageBytes {
		return "", fmt.Errorf("%w: larger than %d bytes", ErrNotAnImage, MaxImageBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("storage: open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("storage: read upload: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", fmt.Errorf("%w: larger than %d bytes", ErrNotAnImage, MaxImageBytes)
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExt[contentType]
	if !ok {
		return "", ErrNotAnImage
	}

	name := make([]byte, 12)
	if _, err := rand.Read(name); err != nil {
		return "", err
	}
	p := dir + "/" + hex.EncodeToString(name) + ext
	if err := disk.Put(ctx, p, bytes.NewReader(data), contentType); err != nil {
		return "", err
	}
	return disk.URL(p), nil
}
