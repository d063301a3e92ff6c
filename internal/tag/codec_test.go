package tag

import (
	"errors"
	"strings"
	"testing"

	"github.com/evcraddock/nfc-timecontrol/internal/ndef"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec("", "")

	places := []string{
		"Office",
		"Gym",
		"Café Central",
		"東京オフィス",
		"a",
		strings.Repeat("x", MaxPlaceLength),
		"  padded  ",
	}

	for _, p := range places {
		t.Run(p, func(t *testing.T) {
			raw, err := codec.Encode(p)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got := codec.DecodeBytes(raw)
			if got.Kind != Valid {
				t.Fatalf("kind = %s, want valid", got.Kind)
			}
			if got.Place != p {
				t.Errorf("place = %q, want %q", got.Place, p)
			}
		})
	}
}

func TestEncodeInvalidPlace(t *testing.T) {
	codec := NewCodec("", "")

	tests := []struct {
		name  string
		place string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"invalid utf8", string([]byte{0xff, 0xfe})},
		{"too long", strings.Repeat("x", MaxPlaceLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Encode(tt.place)
			if !errors.Is(err, ErrInvalidPlace) {
				t.Errorf("err = %v, want ErrInvalidPlace", err)
			}
		})
	}
}

func TestEncodeRecordOrder(t *testing.T) {
	codec := NewCodec("", "")
	msg, err := codec.Message("Office")
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if len(msg) != 2 {
		t.Fatalf("got %d records, want 2", len(msg))
	}
	if msg[0].MIMEType() != DefaultMIMEType {
		t.Errorf("record 0 mime = %q, want %q", msg[0].MIMEType(), DefaultMIMEType)
	}
	if msg[1].ApplicationPackage() != DefaultPackage {
		t.Errorf("record 1 package = %q, want %q", msg[1].ApplicationPackage(), DefaultPackage)
	}
}

func TestDecodeClassification(t *testing.T) {
	codec := NewCodec("", "")

	mime := func(mt, data string) ndef.Record {
		r, err := ndef.NewMIMERecord(mt, []byte(data))
		if err != nil {
			t.Fatalf("mime record: %v", err)
		}
		return r
	}
	app := func(pkg string) ndef.Record {
		r, err := ndef.NewApplicationRecord(pkg)
		if err != nil {
			t.Fatalf("app record: %v", err)
		}
		return r
	}
	uri := ndef.Record{TNF: ndef.TNFWellKnown, Type: []byte("U"), Payload: []byte("\x04example.com")}

	tests := []struct {
		name string
		msgs []ndef.Message
		want Content
	}{
		{
			name: "valid",
			msgs: []ndef.Message{{mime(DefaultMIMEType, "Office"), app(DefaultPackage)}},
			want: Content{Kind: Valid, Place: "Office"},
		},
		{
			name: "valid across two messages",
			msgs: []ndef.Message{{mime(DefaultMIMEType, "Office")}, {app(DefaultPackage)}},
			want: Content{Kind: Valid, Place: "Office"},
		},
		{
			name: "no records",
			msgs: nil,
			want: Content{Kind: Foreign},
		},
		{
			name: "single record",
			msgs: []ndef.Message{{mime(DefaultMIMEType, "Office")}},
			want: Content{Kind: Foreign},
		},
		{
			name: "three records",
			msgs: []ndef.Message{{mime(DefaultMIMEType, "Office"), app(DefaultPackage), uri}},
			want: Content{Kind: Foreign},
		},
		{
			name: "swapped order",
			msgs: []ndef.Message{{app(DefaultPackage), mime(DefaultMIMEType, "Office")}},
			want: Content{Kind: Foreign},
		},
		{
			name: "other application",
			msgs: []ndef.Message{{mime(DefaultMIMEType, "Office"), app("com.other.app")}},
			want: Content{Kind: Foreign},
		},
		{
			name: "other mime type",
			msgs: []ndef.Message{{mime("text/plain", "Office"), app(DefaultPackage)}},
			want: Content{Kind: Foreign},
		},
		{
			name: "uri instead of app record",
			msgs: []ndef.Message{{mime(DefaultMIMEType, "Office"), uri}},
			want: Content{Kind: Foreign},
		},
		{
			name: "empty place",
			msgs: []ndef.Message{{mime(DefaultMIMEType, ""), app(DefaultPackage)}},
			want: Content{Kind: Malformed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := codec.Decode(tt.msgs...)
			if got != tt.want {
				t.Errorf("Decode = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeBytesMalformed(t *testing.T) {
	codec := NewCodec("", "")
	for _, raw := range [][]byte{nil, {}, {0x01, 0x02, 0x03}} {
		if got := codec.DecodeBytes(raw); got.Kind != Malformed {
			t.Errorf("DecodeBytes(% x) kind = %s, want malformed", raw, got.Kind)
		}
	}
}

func TestCustomIdentity(t *testing.T) {
	mine := NewCodec("org.example.clock", "application/x-clock")
	theirs := NewCodec("", "")

	raw, err := mine.Encode("Lab")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := mine.DecodeBytes(raw); got.Kind != Valid || got.Place != "Lab" {
		t.Errorf("own tag decoded as %+v", got)
	}
	if got := theirs.DecodeBytes(raw); got.Kind != Foreign {
		t.Errorf("other identity decoded as %s, want foreign", got.Kind)
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{Valid: "valid", Foreign: "foreign", Malformed: "malformed"}
	for k, want := range tests {
		if k.String() != want {
			t.Errorf("Kind(%d) = %q, want %q", k, k.String(), want)
		}
	}
}
