package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/palette/internal/mq"
	"github.com/jjudge-oj/palette/internal/storage"
	"github.com/jjudge-oj/palette/types"
)

// UploadsPath is the public prefix stored images are served under.
const UploadsPath = "/uploads/"

const maxExtLen = 16

// PaletteRepository defines persistence operations for palette items.
type PaletteRepository interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]types.PaletteItem, error)
	Create(ctx context.Context, item types.PaletteItem) (types.PaletteItem, error)
}

// ObjectStore is the subset of storage.Storage the palette needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher publishes palette events. mq.MQ satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// UploadInput is a file received from a client plus its metadata.
type UploadInput struct {
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
	Name        string
	Width       int
	Height      int
}

// PaletteService lists and stores palette items.
type PaletteService struct {
	repo    PaletteRepository
	objects ObjectStore
	events  EventPublisher
	channel string
	log     *slog.Logger
}

// NewPaletteService constructs the service. events may be nil, in which
// case no upload events are published.
func NewPaletteService(repo PaletteRepository, objects ObjectStore, events EventPublisher, channel string, log *slog.Logger) *PaletteService {
	if log == nil {
		log = slog.Default()
	}
	return &PaletteService{
		repo:    repo,
		objects: objects,
		events:  events,
		channel: channel,
		log:     log,
	}
}

// List returns the items owned by the caller.
func (s *PaletteService) List(ctx context.Context, identity types.Identity) ([]types.PaletteItem, error) {
	items, err := s.repo.ListByOwner(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("list palette: %w", err)
	}
	if items == nil {
		items = []types.PaletteItem{}
	}
	return items, nil
}

// Upload stores the file under a generated name and records it as an item
// owned by the caller.
func (s *PaletteService) Upload(ctx context.Context, identity types.Identity, in UploadInput) (types.PaletteItem, error) {
	const op = "PaletteService.Upload"
	log := s.log.With(slog.String("op", op), slog.String("user_id", identity.UserID.String()))

	if in.Body == nil || in.Size <= 0 {
		return types.PaletteItem{}, ErrEmptyFile
	}

	key := uuid.NewString() + fileExtension(in.Filename)
	if err := s.objects.Put(ctx, key, in.Body, in.Size, in.ContentType); err != nil {
		return types.PaletteItem{}, fmt.Errorf("%s: store file: %w", op, err)
	}

	item, err := s.repo.Create(ctx, types.PaletteItem{
		ID:       uuid.New(),
		Name:     in.Name,
		ImageURL: UploadsPath + key,
		Width:    in.Width,
		Height:   in.Height,
		OwnerID:  identity.UserID,
	})
	if err != nil {
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			log.Error("failed to remove orphaned upload", slog.String("key", key), slog.Any("error", delErr))
		}
		return types.PaletteItem{}, fmt.Errorf("%s: create item: %w", op, err)
	}

	log.Info("palette item uploaded", slog.String("item_id", item.ID.String()), slog.Int64("size", in.Size))
	s.publishUploaded(ctx, item, key, in.Size)
	return item, nil
}

// Open returns a reader for a stored file by its generated name.
func (s *PaletteService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return nil, ErrNotFound
	}
	rc, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rc, nil
}

func (s *PaletteService) publishUploaded(ctx context.Context, item types.PaletteItem, key string, size int64) {
	if s.events == nil || s.channel == "" {
		return
	}

	payload, err := json.Marshal(types.ItemUploadedEvent{
		ItemID:     item.ID,
		OwnerID:    item.OwnerID,
		Name:       item.Name,
		ImageURL:   item.ImageURL,
		ObjectKey:  key,
		Size:       size,
		UploadedAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Error("failed to encode upload event", slog.Any("error", err))
		return
	}

	attrs := map[string]string{
		mq.AttrContentType: "application/json",
		"event":            "palette.item.uploaded",
	}
	if _, err := s.events.Publish(ctx, s.channel, payload, attrs); err != nil {
		s.log.Warn("failed to publish upload event",
			slog.String("item_id", item.ID.String()),
			slog.Any("error", err),
		)
	}
}

// fileExtension keeps the original extension when it is short and
// alphanumeric; anything else is dropped.
func fileExtension(filename string) string {
	ext := filepath.Ext(filepath.Base(strings.ReplaceAll(filename, `\`, "/")))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
