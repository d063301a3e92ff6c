// Package scan turns tag reads into check-ins and check-outs.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/evcraddock/nfc-timecontrol/internal/tag"
	"github.com/evcraddock/nfc-timecontrol/internal/visit"
)

var (
	// ErrForeignTag is returned for tags written by another application.
	ErrForeignTag = errors.New("not our tag")

	// ErrMalformedTag is returned for tags whose content cannot be parsed.
	ErrMalformedTag = errors.New("tag content is malformed")
)

// Outcome labels for the scans counter.
const (
	OutcomeCheckIn   = "check_in"
	OutcomeCheckOut  = "check_out"
	OutcomeForeign   = "foreign"
	OutcomeMalformed = "malformed"
	OutcomeError     = "error"
)

// Recorder records scans for a place.
type Recorder interface {
	RecordScan(ctx context.Context, place string, now time.Time) (*visit.ScanResult, error)
}

// Service handles scans of tags and manual check toggles.
type Service struct {
	codec    tag.Codec
	recorder Recorder
	scans    *prometheus.CounterVec
}

// NewService creates a scan service. The scans counter is registered on reg
// when reg is not nil.
func NewService(codec tag.Codec, recorder Recorder, reg prometheus.Registerer) (*Service, error) {
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ntc_scans_total",
		Help: "Tag scans handled, by outcome.",
	}, []string{"outcome"})

	if reg != nil {
		if err := reg.Register(scans); err != nil {
			return nil, fmt.Errorf("registering scan metrics: %w", err)
		}
	}

	return &Service{codec: codec, recorder: recorder, scans: scans}, nil
}

// HandleTag decodes raw tag bytes and toggles the place they name.
func (s *Service) HandleTag(ctx context.Context, raw []byte, now time.Time) (*visit.ScanResult, error) {
	content := s.codec.DecodeBytes(raw)

	switch content.Kind {
	case tag.Foreign:
		s.scans.WithLabelValues(OutcomeForeign).Inc()
		slog.Info("ignoring foreign tag", "bytes", len(raw))
		return nil, ErrForeignTag
	case tag.Malformed:
		s.scans.WithLabelValues(OutcomeMalformed).Inc()
		slog.Warn("ignoring malformed tag", "bytes", len(raw))
		return nil, ErrMalformedTag
	}

	return s.CheckPlace(ctx, content.Place, now)
}

// HandleDevice reads the tag in range and handles its content.
func (s *Service) HandleDevice(ctx context.Context, dev tag.Device, now time.Time) (*visit.ScanResult, error) {
	raw, err := tag.ReadRaw(ctx, dev)
	if err != nil {
		s.scans.WithLabelValues(OutcomeError).Inc()
		return nil, err
	}

	return s.HandleTag(ctx, raw, now)
}

// CheckPlace toggles a place without a tag.
func (s *Service) CheckPlace(ctx context.Context, place string, now time.Time) (*visit.ScanResult, error) {
	if err := tag.ValidatePlace(place); err != nil {
		s.scans.WithLabelValues(OutcomeError).Inc()
		return nil, err
	}

	res, err := s.recorder.RecordScan(ctx, place, now)
	if err != nil {
		s.scans.WithLabelValues(OutcomeError).Inc()
		return nil, fmt.Errorf("recording scan: %w", err)
	}

	s.scans.WithLabelValues(string(res.Action)).Inc()
	slog.Info("scan recorded", "place", res.Visit.Place, "action", res.Action, "visit_id", res.Visit.ID)
	return res, nil
}

// Ignored reports whether err means the tag was not ours and the scan should
// be dropped quietly.
func Ignored(err error) bool {
	return errors.Is(err, ErrForeignTag) || errors.Is(err, ErrMalformedTag)
}
