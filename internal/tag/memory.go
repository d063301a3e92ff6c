package tag

import (
	"context"
	"fmt"
)

// MemoryDevice is an in-memory tag for tests. It can be told to fail at
// each step.
type MemoryDevice struct {
	Data     []byte
	Capacity int
	ReadOnly bool
	Blank    bool

	// Injected failures.
	ConnectErr error
	WriteErr   error
	FormatErr  error

	Writes    int
	connected bool
}

// NewMemoryDevice returns a formatted, writable in-memory tag.
func NewMemoryDevice(capacity int) *MemoryDevice {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryDevice{Capacity: capacity}
}

// Connect implements Device.
func (d *MemoryDevice) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.ConnectErr != nil {
		return d.ConnectErr
	}
	d.connected = true
	return nil
}

// Close implements Device.
func (d *MemoryDevice) Close() error {
	d.connected = false
	return nil
}

// Formatted implements Device.
func (d *MemoryDevice) Formatted() bool { return !d.Blank }

// Format implements Device.
func (d *MemoryDevice) Format(ctx context.Context) error {
	if d.FormatErr != nil {
		return d.FormatErr
	}
	d.Blank = false
	d.Data = nil
	return nil
}

// Writable implements Device.
func (d *MemoryDevice) Writable() bool { return !d.ReadOnly }

// MaxSize implements Device.
func (d *MemoryDevice) MaxSize() int { return d.Capacity }

// Read implements Device.
func (d *MemoryDevice) Read(ctx context.Context) ([]byte, error) {
	if !d.connected {
		return nil, fmt.Errorf("tag not connected")
	}
	return append([]byte(nil), d.Data...), nil
}

// Write implements Device.
func (d *MemoryDevice) Write(ctx context.Context, data []byte) error {
	if !d.connected {
		return fmt.Errorf("tag not connected")
	}
	if d.WriteErr != nil {
		return d.WriteErr
	}
	if d.ReadOnly {
		return ErrNotWritable
	}
	if len(data) > d.Capacity {
		return ErrInsufficientCapacity
	}
	d.Data = append([]byte(nil), data...)
	d.Writes++
	return nil
}
