package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/nfc-timecontrol/internal/client"
	"github.com/evcraddock/nfc-timecontrol/internal/scan"
	"github.com/evcraddock/nfc-timecontrol/internal/tag"
	"github.com/evcraddock/nfc-timecontrol/internal/visit"
)

// backend is where visits live: the local database or a remote server.
type backend interface {
	ScanDevice(ctx context.Context, dev tag.Device) (*client.ScanResponse, error)
	CheckPlace(ctx context.Context, place string) (*client.ScanResponse, error)
	Open(ctx context.Context, place string) (*client.OpenEntry, error)
	Places(ctx context.Context) ([]*visit.Summary, error)
	Visits(ctx context.Context, place string) ([]*client.VisitEntry, error)
	Status(ctx context.Context) (*client.Status, error)
	DeletePlace(ctx context.Context, place string) (int64, error)
	Close()
}

// openBackend returns a remote backend when a server is configured and a
// local one otherwise.
func openBackend() (backend, error) {
	if url := getServerURL(); url != "" {
		return &remoteBackend{c: client.New(url, getAPIKey())}, nil
	}

	database, err := openDB()
	if err != nil {
		return nil, err
	}
	repo := visit.NewRepository(database)
	scans, err := scan.NewService(getCodec(), repo, nil)
	if err != nil {
		closeDB(database)
		return nil, err
	}
	return &localBackend{db: database, repo: repo, scans: scans, now: time.Now}, nil
}

type localBackend struct {
	db    *sql.DB
	repo  *visit.Repository
	scans *scan.Service
	now   func() time.Time
}

func (b *localBackend) ScanDevice(ctx context.Context, dev tag.Device) (*client.ScanResponse, error) {
	res, err := b.scans.HandleDevice(ctx, dev, b.now())
	return scanResponse(res, err)
}

func (b *localBackend) CheckPlace(ctx context.Context, place string) (*client.ScanResponse, error) {
	res, err := b.scans.CheckPlace(ctx, place, b.now())
	return scanResponse(res, err)
}

func scanResponse(res *visit.ScanResult, err error) (*client.ScanResponse, error) {
	if scan.Ignored(err) {
		return &client.ScanResponse{Ignored: true, Reason: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	return &client.ScanResponse{
		Action: res.Action,
		Label:  res.Action.Label(),
		Visit:  res.Visit,
	}, nil
}

func (b *localBackend) Open(ctx context.Context, place string) (*client.OpenEntry, error) {
	open, err := b.repo.IsOpen(ctx, place)
	if err != nil {
		return nil, err
	}
	count, err := b.repo.VisitCount(ctx, place)
	if err != nil {
		return nil, err
	}

	entry := &client.OpenEntry{Place: strings.TrimSpace(place), Open: open, Visits: count}
	if !open {
		return entry, nil
	}

	latest, err := b.repo.Latest(ctx, place)
	if err != nil {
		return nil, err
	}
	entry.CheckIn = &latest.CheckIn
	entry.Minutes, err = b.repo.OpenDurationMinutes(ctx, place, b.now())
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (b *localBackend) Places(ctx context.Context) ([]*visit.Summary, error) {
	return b.repo.Summaries(ctx)
}

func (b *localBackend) Visits(ctx context.Context, place string) ([]*client.VisitEntry, error) {
	visits, err := b.repo.ListByPlace(ctx, place)
	if err != nil {
		return nil, err
	}
	now := b.now()
	entries := make([]*client.VisitEntry, 0, len(visits))
	for _, v := range visits {
		entries = append(entries, &client.VisitEntry{Visit: *v, Minutes: v.Minutes(now)})
	}
	return entries, nil
}

func (b *localBackend) Status(ctx context.Context) (*client.Status, error) {
	empty, err := b.repo.IsEmpty(ctx)
	if err != nil {
		return nil, err
	}
	open, err := b.repo.OpenVisits(ctx)
	if err != nil {
		return nil, err
	}

	now := b.now()
	status := &client.Status{Empty: empty, Open: make([]*client.OpenEntry, 0, len(open))}
	for _, v := range open {
		in := v.CheckIn
		status.Open = append(status.Open, &client.OpenEntry{
			Place:   v.Place,
			Open:    true,
			CheckIn: &in,
			Minutes: v.Minutes(now),
		})
	}
	return status, nil
}

func (b *localBackend) DeletePlace(ctx context.Context, place string) (int64, error) {
	n, err := b.repo.DeletePlace(ctx, place)
	if errors.Is(err, visit.ErrNotFound) {
		return 0, fmt.Errorf("no visits recorded for %q", place)
	}
	return n, err
}

func (b *localBackend) Close() {
	closeDB(b.db)
}

type remoteBackend struct {
	c *client.Client
}

func (b *remoteBackend) ScanDevice(ctx context.Context, dev tag.Device) (*client.ScanResponse, error) {
	raw, err := tag.ReadRaw(ctx, dev)
	if err != nil {
		return nil, err
	}
	// The API cannot carry an empty tag; a blank tag is never ours.
	if len(raw) == 0 {
		return &client.ScanResponse{Ignored: true, Reason: scan.ErrMalformedTag.Error()}, nil
	}
	return b.c.Scan(ctx, client.ScanRequest{Tag: raw})
}

func (b *remoteBackend) CheckPlace(ctx context.Context, place string) (*client.ScanResponse, error) {
	return b.c.Scan(ctx, client.ScanRequest{Place: place})
}

func (b *remoteBackend) Open(ctx context.Context, place string) (*client.OpenEntry, error) {
	return b.c.Open(ctx, place)
}

func (b *remoteBackend) Places(ctx context.Context) ([]*visit.Summary, error) {
	return b.c.Places(ctx)
}

func (b *remoteBackend) Visits(ctx context.Context, place string) ([]*client.VisitEntry, error) {
	return b.c.Visits(ctx, place)
}

func (b *remoteBackend) Status(ctx context.Context) (*client.Status, error) {
	return b.c.Status(ctx)
}

func (b *remoteBackend) DeletePlace(ctx context.Context, place string) (int64, error) {
	n, err := b.c.DeletePlace(ctx, place)
	if errors.Is(err, client.ErrNotFound) {
		return 0, fmt.Errorf("no visits recorded for %q", place)
	}
	return n, err
}

func (b *remoteBackend) Close() {}
