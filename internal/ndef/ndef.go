// Package ndef encodes and decodes NFC Data Exchange Format messages.
//
// Only unchunked records are supported. That covers everything a phone writes
// for small payloads and everything this project writes itself.
package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// TNF is the 3-bit Type Name Format field of a record header.
type TNF byte

const (
	TNFEmpty       TNF = 0x00
	TNFWellKnown   TNF = 0x01
	TNFMIMEMedia   TNF = 0x02
	TNFAbsoluteURI TNF = 0x03
	TNFExternal    TNF = 0x04
	TNFUnknown     TNF = 0x05
	TNFUnchanged   TNF = 0x06
)

// Header flag bits.
const (
	flagMB  byte = 0x80
	flagME  byte = 0x40
	flagCF  byte = 0x20
	flagSR  byte = 0x10
	flagIL  byte = 0x08
	tnfMask byte = 0x07
)

// applicationType is the external type Android uses for Android Application Records.
const applicationType = "android.com:pkg"

var (
	// ErrMalformed is returned when bytes do not form a valid NDEF message.
	ErrMalformed = errors.New("malformed ndef message")

	// ErrEmptyMessage is returned when marshaling a message with no records.
	ErrEmptyMessage = errors.New("ndef message has no records")
)

// String returns the conventional name of the TNF.
func (t TNF) String() string {
	switch t {
	case TNFEmpty:
		return "empty"
	case TNFWellKnown:
		return "well_known"
	case TNFMIMEMedia:
		return "mime"
	case TNFAbsoluteURI:
		return "absolute_uri"
	case TNFExternal:
		return "external"
	case TNFUnknown:
		return "unknown"
	case TNFUnchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("reserved(%d)", byte(t))
	}
}

// Record is a single NDEF record.
type Record struct {
	TNF     TNF
	Type    []byte
	ID      []byte
	Payload []byte
}

// Message is an ordered list of records.
type Message []Record

// NewMIMERecord creates a MIME media record. The MIME type is normalized to
// lower case with any parameters removed.
func NewMIMERecord(mimeType string, data []byte) (Record, error) {
	mt := normalizeMIMEType(mimeType)
	if mt == "" {
		return Record{}, fmt.Errorf("mime type is required")
	}
	slash := strings.IndexByte(mt, '/')
	if slash <= 0 || slash == len(mt)-1 {
		return Record{}, fmt.Errorf("invalid mime type: %q", mimeType)
	}
	return Record{TNF: TNFMIMEMedia, Type: []byte(mt), Payload: data}, nil
}

// NewApplicationRecord creates an Android Application Record naming pkg.
// A phone that reads a tag carrying this record starts the named application.
func NewApplicationRecord(pkg string) (Record, error) {
	if pkg == "" {
		return Record{}, fmt.Errorf("package name is required")
	}
	return Record{TNF: TNFExternal, Type: []byte(applicationType), Payload: []byte(pkg)}, nil
}

// NewEmptyRecord creates an empty record. A message holding a single empty
// record is how a blank tag is represented.
func NewEmptyRecord() Record {
	return Record{TNF: TNFEmpty}
}

// MIMEType returns the record's MIME type, or "" if it is not a MIME record.
func (r Record) MIMEType() string {
	if r.TNF != TNFMIMEMedia {
		return ""
	}
	return string(r.Type)
}

// ApplicationPackage returns the package named by an Android Application
// Record, or "" if r is not one.
func (r Record) ApplicationPackage() string {
	if r.TNF != TNFExternal || string(r.Type) != applicationType {
		return ""
	}
	return string(r.Payload)
}

// IsEmpty reports whether r is an empty record.
func (r Record) IsEmpty() bool {
	return r.TNF == TNFEmpty
}

// Marshal encodes the message into its wire form.
func (m Message) Marshal() ([]byte, error) {
	if len(m) == 0 {
		return nil, ErrEmptyMessage
	}

	var out []byte
	for i, r := range m {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if len(r.Type) > 0xff {
			return nil, fmt.Errorf("record %d: type longer than 255 bytes", i)
		}
		if len(r.ID) > 0xff {
			return nil, fmt.Errorf("record %d: id longer than 255 bytes", i)
		}
		if uint64(len(r.Payload)) > 0xffffffff {
			return nil, fmt.Errorf("record %d: payload too large", i)
		}

		header := byte(r.TNF) & tnfMask
		if i == 0 {
			header |= flagMB
		}
		if i == len(m)-1 {
			header |= flagME
		}
		short := len(r.Payload) < 256
		if short {
			header |= flagSR
		}
		if len(r.ID) > 0 {
			header |= flagIL
		}

		out = append(out, header, byte(len(r.Type)))
		if short {
			out = append(out, byte(len(r.Payload)))
		} else {
			out = binary.BigEndian.AppendUint32(out, uint32(len(r.Payload)))
		}
		if len(r.ID) > 0 {
			out = append(out, byte(len(r.ID)))
		}
		out = append(out, r.Type...)
		out = append(out, r.ID...)
		out = append(out, r.Payload...)
	}

	return out, nil
}

// Unmarshal decodes a single NDEF message. The input must contain exactly one
// message with no trailing bytes.
func Unmarshal(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data", ErrMalformed)
	}

	var msg Message
	off := 0
	for {
		if off >= len(data) {
			return nil, fmt.Errorf("%w: missing message end", ErrMalformed)
		}
		rec, next, last, err := readRecord(data, off, len(msg) == 0)
		if err != nil {
			return nil, err
		}
		msg = append(msg, rec)
		off = next
		if last {
			break
		}
	}

	if off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(data)-off)
	}
	return msg, nil
}

// readRecord parses the record starting at off. It returns the record, the
// offset of the following byte and whether the ME flag was set.
func readRecord(data []byte, off int, first bool) (Record, int, bool, error) {
	header := data[off]
	off++

	mb := header&flagMB != 0
	if mb != first {
		return Record{}, 0, false, fmt.Errorf("%w: unexpected message begin flag at byte %d", ErrMalformed, off-1)
	}
	if header&flagCF != 0 {
		return Record{}, 0, false, fmt.Errorf("%w: chunked records are not supported", ErrMalformed)
	}

	need := func(n int) error {
		if len(data)-off < n {
			return fmt.Errorf("%w: truncated record", ErrMalformed)
		}
		return nil
	}

	if err := need(1); err != nil {
		return Record{}, 0, false, err
	}
	typeLen := int(data[off])
	off++

	var payloadLen uint64
	if header&flagSR != 0 {
		if err := need(1); err != nil {
			return Record{}, 0, false, err
		}
		payloadLen = uint64(data[off])
		off++
	} else {
		if err := need(4); err != nil {
			return Record{}, 0, false, err
		}
		payloadLen = uint64(binary.BigEndian.Uint32(data[off:]))
		off += 4
	}

	idLen := 0
	if header&flagIL != 0 {
		if err := need(1); err != nil {
			return Record{}, 0, false, err
		}
		idLen = int(data[off])
		off++
	}

	if uint64(len(data)-off) < uint64(typeLen)+uint64(idLen)+payloadLen {
		return Record{}, 0, false, fmt.Errorf("%w: truncated record", ErrMalformed)
	}

	rec := Record{TNF: TNF(header & tnfMask)}
	if typeLen > 0 {
		rec.Type = append([]byte(nil), data[off:off+typeLen]...)
		off += typeLen
	}
	if idLen > 0 {
		rec.ID = append([]byte(nil), data[off:off+idLen]...)
		off += idLen
	}
	if payloadLen > 0 {
		end := off + int(payloadLen)
		rec.Payload = append([]byte(nil), data[off:end]...)
		off = end
	}

	if err := rec.validate(); err != nil {
		return Record{}, 0, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return rec, off, header&flagME != 0, nil
}

// validate enforces the field constraints each TNF places on a record.
func (r Record) validate() error {
	switch r.TNF {
	case TNFEmpty:
		if len(r.Type) > 0 || len(r.ID) > 0 || len(r.Payload) > 0 {
			return fmt.Errorf("empty record must not carry type, id or payload")
		}
	case TNFWellKnown, TNFMIMEMedia, TNFAbsoluteURI, TNFExternal:
		if len(r.Type) == 0 {
			return fmt.Errorf("%s record requires a type", r.TNF)
		}
	case TNFUnknown:
		if len(r.Type) > 0 {
			return fmt.Errorf("unknown record must not carry a type")
		}
	case TNFUnchanged:
		return fmt.Errorf("unchanged records only appear in chunks")
	default:
		return fmt.Errorf("reserved tnf %d", byte(r.TNF))
	}
	return nil
}

func normalizeMIMEType(mt string) string {
	mt = strings.TrimSpace(strings.ToLower(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
