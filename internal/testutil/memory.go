// Package testutil provides in-memory stand-ins for the database, object
// storage and broker so services and handlers can be tested without
// external infrastructure.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/palette/internal/storage"
	"github.com/jjudge-oj/palette/internal/store"
	"github.com/jjudge-oj/palette/types"
)

// Users is an in-memory users table with a unique email constraint.
type Users struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]types.User
	Err   error
	Calls int
}

func NewUsers() *Users {
	return &Users{byID: make(map[uuid.UUID]types.User)}
}

func (u *Users) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return types.User{}, u.Err
	}
	user, ok := u.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *Users) GetByEmail(ctx context.Context, email string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return types.User{}, u.Err
	}
	for _, user := range u.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (u *Users) Create(ctx context.Context, user types.User) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Calls++
	if u.Err != nil {
		return types.User{}, u.Err
	}
	for _, existing := range u.byID {
		if existing.Email == user.Email {
			return types.User{}, fmt.Errorf("create user: %w", store.ErrConflict)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()
	u.byID[user.ID] = user
	return user, nil
}

// Count returns the number of stored users.
func (u *Users) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.byID)
}

// Palette is an in-memory palette_items table that keeps insertion order.
type Palette struct {
	mu        sync.Mutex
	items     []types.PaletteItem
	CreateErr error
	ListErr   error
}

func NewPalette() *Palette {
	return &Palette{}
}

func (p *Palette) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]types.PaletteItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	items := make([]types.PaletteItem, 0)
	for _, item := range p.items {
		if item.OwnerID == ownerID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (p *Palette) Create(ctx context.Context, item types.PaletteItem) (types.PaletteItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return types.PaletteItem{}, p.CreateErr
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now().UTC()
	p.items = append(p.items, item)
	return item, nil
}

// Count returns the number of stored items across all owners.
func (p *Palette) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Objects is an in-memory object store.
type Objects struct {
	mu      sync.Mutex
	objects map[string][]byte
	PutErr  error
}

func NewObjects() *Objects {
	return &Objects{objects: make(map[string][]byte)}
}

func (o *Objects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if o.PutErr != nil {
		return o.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.objects[key]; exists {
		return errors.New("object exists")
	}
	o.objects[key] = data
	return nil
}

func (o *Objects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o *Objects) Delete(ctx context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	return nil
}

// Keys returns the stored object keys.
func (o *Objects) Keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.objects))
	for key := range o.objects {
		keys = append(keys, key)
	}
	return keys
}

// Published is a message captured by Publisher.
type Published struct {
	Channel string
	Data    []byte
	Attrs   map[string]string
}

// Publisher records published messages.
type Publisher struct {
	mu       sync.Mutex
	Messages []Published
	Err      error
}

func (p *Publisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	p.Messages = append(p.Messages, Published{Channel: channel, Data: data, Attrs: attrs})
	return uuid.NewString(), nil
}
