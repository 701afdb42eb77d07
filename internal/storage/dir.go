package storage

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"vidstream/internal/apperr"
)

// sniffLen is how much of the upload is inspected to detect its type.
const sniffLen = 3072

var allowedTypes = []string{"video/mp4", "video/mpeg", "video/quicktime", "video/webm"}

type Saved struct {
	Filename string
	Size     int64
	MimeType string
	Checksum string
}

// Dir stores uploads as flat files named video-<uuid><ext>.
type Dir struct {
	root     string
	maxBytes int64
}

func NewDir(root string, maxBytes int64) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Dir{root: root, maxBytes: maxBytes}, nil
}

// Save copies r to a new file after checking its content type and size.
func (d *Dir) Save(r io.Reader) (Saved, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Saved{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return Saved{}, apperr.InvalidOperation("video file is empty")
	}

	mt := mimetype.Detect(head)
	if !mimetype.EqualsAny(mt.String(), allowedTypes...) {
		return Saved{}, apperr.InvalidOperation("only video files are allowed (mp4, mpeg, mov, webm)")
	}

	name := "video-" + uuid.NewString() + mt.Extension()
	path := filepath.Join(d.root, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Saved{}, fmt.Errorf("create video file: %w", err)
	}

	hasher := blake3.New(32, nil)
	src := io.MultiReader(bytes.NewReader(head), r)
	if d.maxBytes > 0 {
		src = io.LimitReader(src, d.maxBytes+1)
	}
	written, err := io.Copy(io.MultiWriter(f, hasher), src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return Saved{}, fmt.Errorf("write video file: %w", err)
	}
	if d.maxBytes > 0 && written > d.maxBytes {
		_ = os.Remove(path)
		return Saved{}, apperr.InvalidOperation(fmt.Sprintf("video file exceeds %d bytes", d.maxBytes))
	}

	return Saved{
		Filename: name,
		Size:     written,
		MimeType: mt.String(),
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Path resolves a stored filename inside the upload dir.
func (d *Dir) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid stored filename %q", filename)
	}
	return filepath.Join(d.root, filename), nil
}

// Remove deletes a stored file; a file that is already gone is not an error.
func (d *Dir) Remove(filename string) error {
	path, err := d.Path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove video file: %w", err)
	}
	return nil
}
