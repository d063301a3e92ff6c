package tag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultCapacity is the NDEF capacity of an NTAG213, the most common sticker tag.
const DefaultCapacity = 137

// FileDevice is a tag image stored on disk. The file holds the raw NDEF
// message; a missing file is a blank, unformatted tag and a file without the
// owner write bit is a locked tag.
type FileDevice struct {
	path      string
	capacity  int
	connected bool
}

// NewFileDevice returns a device backed by the file at path.
// A capacity of zero or less selects DefaultCapacity.
func NewFileDevice(path string, capacity int) *FileDevice {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FileDevice{path: path, capacity: capacity}
}

// Path returns the image file path.
func (d *FileDevice) Path() string {
	return d.path
}

// Connect opens the session with the tag.
func (d *FileDevice) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(d.path)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: %v", ErrNoTag, err)
	}
	d.connected = true
	return nil
}

// Close ends the session.
func (d *FileDevice) Close() error {
	d.connected = false
	return nil
}

// Formatted reports whether the image file exists.
func (d *FileDevice) Formatted() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// Format creates an image holding an empty NDEF container.
func (d *FileDevice) Format(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("creating tag directory: %w", err)
	}
	// A zero-length image is an initialized container with no message yet.
	return os.WriteFile(d.path, nil, 0o644)
}

// Writable reports whether the image can be rewritten.
func (d *FileDevice) Writable() bool {
	info, err := os.Stat(d.path)
	if err != nil {
		return errors.Is(err, os.ErrNotExist)
	}
	return info.Mode().Perm()&0o200 != 0
}

// MaxSize returns the tag capacity in bytes.
func (d *FileDevice) MaxSize() int {
	return d.capacity
}

// Read returns the raw message bytes. A blank tag reads as nil.
func (d *FileDevice) Read(ctx context.Context) ([]byte, error) {
	if !d.connected {
		return nil, fmt.Errorf("tag not connected")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tag image: %w", err)
	}
	return data, nil
}

// Write replaces the image. The new content goes to a temporary file that is
// renamed over the image, so a failed write leaves the previous content.
func (d *FileDevice) Write(ctx context.Context, data []byte) error {
	if !d.connected {
		return fmt.Errorf("tag not connected")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) > d.capacity {
		return ErrInsufficientCapacity
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), ".tag-*")
	if err != nil {
		return fmt.Errorf("creating temp image: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp image: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting image mode: %w", err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing image: %w", err)
	}
	return nil
}

// Lock makes the tag permanently read-only.
func (d *FileDevice) Lock() error {
	if !d.Formatted() {
		return fmt.Errorf("cannot lock a blank tag")
	}
	if err := os.Chmod(d.path, 0o444); err != nil {
		return fmt.Errorf("locking tag: %w", err)
	}
	return nil
}
