// Package tag reads and writes place tags: NFC tags whose NDEF message names a
// place and the application that owns it.
package tag

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/evcraddock/nfc-timecontrol/internal/ndef"
)

const (
	// DefaultPackage is the application identity written to every tag.
	DefaultPackage = "com.naroh.nfctimecontrol"

	// DefaultMIMEType is the MIME type of the record carrying the place name.
	DefaultMIMEType = "application/com.naroh.nfctimecontrol"

	// MaxPlaceLength is the longest place name accepted, in bytes.
	MaxPlaceLength = 128
)

// ErrInvalidPlace is returned when a place name cannot be written to a tag.
var ErrInvalidPlace = errors.New("invalid place name")

// Kind classifies what was found on a tag.
type Kind int

const (
	// Malformed means the tag bytes are not a valid NDEF message.
	Malformed Kind = iota
	// Foreign means a valid NDEF message that was not written by this application.
	Foreign
	// Valid means a place tag owned by this application.
	Valid
)

// String returns a lower-case name for the kind.
func (k Kind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Foreign:
		return "foreign"
	default:
		return "malformed"
	}
}

// Content is the decoded content of a tag. Place is set only when Kind is Valid.
type Content struct {
	Kind  Kind
	Place string
}

// Codec builds and recognizes place messages for one application identity.
type Codec struct {
	Package  string
	MIMEType string
}

// NewCodec returns a codec for the given package and MIME type, falling back
// to the defaults for empty values.
func NewCodec(pkg, mimeType string) Codec {
	if pkg == "" {
		pkg = DefaultPackage
	}
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	return Codec{Package: pkg, MIMEType: mimeType}
}

// ValidatePlace checks that a place name can be stored on a tag.
func ValidatePlace(place string) error {
	if strings.TrimSpace(place) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlace)
	}
	if !utf8.ValidString(place) {
		return fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidPlace)
	}
	if len(place) > MaxPlaceLength {
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidPlace, MaxPlaceLength)
	}
	return nil
}

// Message builds the two-record place message. The data record comes first so
// a phone routes the scan by MIME type even when the app is not in the
// foreground; the application record follows.
func (c Codec) Message(place string) (ndef.Message, error) {
	if err := ValidatePlace(place); err != nil {
		return nil, err
	}

	data, err := ndef.NewMIMERecord(c.MIMEType, []byte(place))
	if err != nil {
		return nil, fmt.Errorf("building data record: %w", err)
	}
	app, err := ndef.NewApplicationRecord(c.Package)
	if err != nil {
		return nil, fmt.Errorf("building application record: %w", err)
	}

	return ndef.Message{data, app}, nil
}

// Encode returns the wire bytes of the place message.
func (c Codec) Encode(place string) ([]byte, error) {
	msg, err := c.Message(place)
	if err != nil {
		return nil, err
	}
	return msg.Marshal()
}

// Decode classifies the records of one or more messages read from a tag.
// Records are considered in order across all messages.
func (c Codec) Decode(msgs ...ndef.Message) Content {
	var records []ndef.Record
	for _, m := range msgs {
		records = append(records, m...)
	}

	// Place tags carry exactly two records.
	if len(records) != 2 {
		return Content{Kind: Foreign}
	}

	data, app := records[0], records[1]
	if data.MIMEType() == "" || app.ApplicationPackage() == "" {
		return Content{Kind: Foreign}
	}
	if app.ApplicationPackage() != c.Package {
		return Content{Kind: Foreign}
	}
	if !strings.EqualFold(data.MIMEType(), c.MIMEType) {
		return Content{Kind: Foreign}
	}

	place := string(data.Payload)
	if ValidatePlace(place) != nil {
		return Content{Kind: Malformed}
	}

	return Content{Kind: Valid, Place: place}
}

// DecodeBytes parses raw tag bytes and classifies them.
func (c Codec) DecodeBytes(raw []byte) Content {
	msg, err := ndef.Unmarshal(raw)
	if err != nil {
		return Content{Kind: Malformed}
	}
	return c.Decode(msg)
}
