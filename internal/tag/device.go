package tag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/evcraddock/nfc-timecontrol/internal/ndef"
)

var (
	// ErrNotWritable is returned when the tag is read-only.
	ErrNotWritable = errors.New("tag is not writable")

	// ErrInsufficientCapacity is returned when the message does not fit on the tag.
	ErrInsufficientCapacity = errors.New("tag does not have enough space")

	// ErrFormat is returned when an unformatted tag cannot be formatted for NDEF.
	ErrFormat = errors.New("tag could not be formatted")

	// ErrNoTag is returned when there is no tag to talk to.
	ErrNoTag = errors.New("no tag present")
)

// Device is an NFC tag in range of a reader.
//
// Connect must succeed before Read or Write. Formatted reports whether the tag
// already holds an NDEF container; Format prepares one on a blank tag.
type Device interface {
	Connect(ctx context.Context) error
	Close() error
	Formatted() bool
	Format(ctx context.Context) error
	Writable() bool
	MaxSize() int
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Writer writes place messages to tags.
type Writer struct {
	codec Codec
}

// NewWriter creates a writer for the given codec.
func NewWriter(codec Codec) *Writer {
	return &Writer{codec: codec}
}

// Write stores the place message on the tag. A blank tag is formatted
// first. Nothing is written when the tag is read-only or too small.
func (w *Writer) Write(ctx context.Context, dev Device, place string) error {
	data, err := w.codec.Encode(place)
	if err != nil {
		return err
	}

	if !dev.Writable() {
		return ErrNotWritable
	}
	if dev.MaxSize() < len(data) {
		return fmt.Errorf("%w: need %d bytes, tag holds %d", ErrInsufficientCapacity, len(data), dev.MaxSize())
	}

	if !dev.Formatted() {
		slog.Debug("formatting blank tag")
		if err := w.Erase(ctx, dev); err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}
	}

	if err := writeBytes(ctx, dev, data); err != nil {
		return err
	}

	slog.Info("tag written", "place", place, "bytes", len(data))
	return nil
}

// Erase replaces the tag content with a single empty record, formatting the
// tag first if needed.
func (w *Writer) Erase(ctx context.Context, dev Device) error {
	if !dev.Writable() {
		return ErrNotWritable
	}
	if !dev.Formatted() {
		if err := dev.Format(ctx); err != nil {
			return fmt.Errorf("formatting tag: %w", err)
		}
	}

	data, err := ndef.Message{ndef.NewEmptyRecord()}.Marshal()
	if err != nil {
		return fmt.Errorf("encoding empty message: %w", err)
	}
	return writeBytes(ctx, dev, data)
}

// Read connects to the tag and classifies its content.
func Read(ctx context.Context, dev Device, codec Codec) (Content, error) {
	raw, err := ReadRaw(ctx, dev)
	if err != nil {
		return Content{}, err
	}
	return codec.DecodeBytes(raw), nil
}

// ReadRaw connects to the tag and returns its bytes. A blank tag yields nil.
func ReadRaw(ctx context.Context, dev Device) ([]byte, error) {
	if err := dev.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting to tag: %w", err)
	}

	raw, err := dev.Read(ctx)
	closeDevice(dev)
	if err != nil {
		return nil, fmt.Errorf("reading tag: %w", err)
	}
	return raw, nil
}

func writeBytes(ctx context.Context, dev Device, data []byte) error {
	if err := dev.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to tag: %w", err)
	}
	defer closeDevice(dev)

	if err := dev.Write(ctx, data); err != nil {
		return fmt.Errorf("writing tag: %w", err)
	}
	return nil
}

// closeDevice closes the device, logging any error.
func closeDevice(dev Device) {
	if err := dev.Close(); err != nil {
		slog.Warn("closing tag", "error", err)
	}
}
