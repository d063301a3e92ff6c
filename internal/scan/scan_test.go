package scan

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/evcraddock/nfc-timecontrol/internal/db"
	"github.com/evcraddock/nfc-timecontrol/internal/tag"
	"github.com/evcraddock/nfc-timecontrol/internal/visit"
)

var now = time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)

func TestHandleTagToggles(t *testing.T) {
	svc, repo, reg := testSetup(t)
	ctx := context.Background()

	raw, err := tag.NewCodec("", "").Encode("Office")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	res, err := svc.HandleTag(ctx, raw, now)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if res.Action != visit.CheckIn || res.Visit.Place != "Office" {
		t.Errorf("first scan = %s %s", res.Action, res.Visit.Place)
	}

	res, err = svc.HandleTag(ctx, raw, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if res.Action != visit.CheckOut {
		t.Errorf("second scan action = %s, want check_out", res.Action)
	}

	visits, err := repo.ListByPlace(ctx, "Office")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visits) != 1 || visits[0].IsOpen() {
		t.Errorf("visits = %+v, want one closed visit", visits)
	}

	if got := counterValue(t, reg, OutcomeCheckIn); got != 1 {
		t.Errorf("check_in count = %v, want 1", got)
	}
	if got := counterValue(t, reg, OutcomeCheckOut); got != 1 {
		t.Errorf("check_out count = %v, want 1", got)
	}
}

func TestHandleTagIgnoresOtherContent(t *testing.T) {
	svc, repo, reg := testSetup(t)
	ctx := context.Background()

	foreign, err := tag.NewCodec("com.other.app", "").Encode("Office")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tests := []struct {
		name    string
		raw     []byte
		wantErr error
	}{
		{"foreign", foreign, ErrForeignTag},
		{"erased", []byte{0xD0, 0x00, 0x00}, ErrForeignTag},
		{"garbage", []byte{0x01, 0x02}, ErrMalformedTag},
		{"empty", nil, ErrMalformedTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.HandleTag(ctx, tt.raw, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !Ignored(err) {
				t.Error("expected error to be ignorable")
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
		})
	}

	empty, err := repo.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("is empty: %v", err)
	}
	if !empty {
		t.Error("ignored tags recorded a visit")
	}
	if got := counterValue(t, reg, OutcomeForeign); got != 2 {
		t.Errorf("foreign count = %v, want 2", got)
	}
	if got := counterValue(t, reg, OutcomeMalformed); got != 2 {
		t.Errorf("malformed count = %v, want 2", got)
	}
}

func TestHandleDevice(t *testing.T) {
	svc, _, _ := testSetup(t)
	ctx := context.Background()
	codec := tag.NewCodec("", "")

	dev := tag.NewMemoryDevice(0)
	if err := tag.NewWriter(codec).Write(ctx, dev, "Gym"); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := svc.HandleDevice(ctx, dev, now)
	if err != nil {
		t.Fatalf("handle device: %v", err)
	}
	if res.Visit.Place != "Gym" || res.Action != visit.CheckIn {
		t.Errorf("result = %s %s", res.Action, res.Visit.Place)
	}

	lost := tag.NewMemoryDevice(0)
	lost.ConnectErr = tag.ErrNoTag
	_, err = svc.HandleDevice(ctx, lost, now)
	if !errors.Is(err, tag.ErrNoTag) {
		t.Errorf("err = %v, want ErrNoTag", err)
	}
	if Ignored(err) {
		t.Error("device error should not be ignorable")
	}
}

func TestCheckPlace(t *testing.T) {
	svc, _, reg := testSetup(t)
	ctx := context.Background()

	res, err := svc.CheckPlace(ctx, "Library", now)
	if err != nil {
		t.Fatalf("check place: %v", err)
	}
	if res.Action != visit.CheckIn {
		t.Errorf("action = %s, want check_in", res.Action)
	}

	if _, err := svc.CheckPlace(ctx, "  ", now); !errors.Is(err, tag.ErrInvalidPlace) {
		t.Errorf("err = %v, want ErrInvalidPlace", err)
	}
	if got := counterValue(t, reg, OutcomeError); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestCheckPlaceRecorderError(t *testing.T) {
	boom := errors.New("disk full")
	svc, err := NewService(tag.NewCodec("", ""), failingRecorder{err: boom}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.CheckPlace(context.Background(), "Office", now); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestNewServiceDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	codec := tag.NewCodec("", "")

	if _, err := NewService(codec, failingRecorder{}, reg); err != nil {
		t.Fatalf("first service: %v", err)
	}
	if _, err := NewService(codec, failingRecorder{}, reg); err == nil {
		t.Error("expected error registering metrics twice")
	}
}

type failingRecorder struct {
	err error
}

func (f failingRecorder) RecordScan(context.Context, string, time.Time) (*visit.ScanResult, error) {
	return nil, f.err
}

func counterValue(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "ntc_scans_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func testSetup(t *testing.T) (*Service, *visit.Repository, *prometheus.Registry) {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	repo := visit.NewRepository(d)
	reg := prometheus.NewRegistry()
	svc, err := NewService(tag.NewCodec("", ""), repo, reg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, reg
}
