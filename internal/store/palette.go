package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/palette/types"
)

// PaletteRepository handles persistence for palette items.
type PaletteRepository struct {
	db *sql.DB
}

func NewPaletteRepository(db *sql.DB) *PaletteRepository {
	return &PaletteRepository{db: db}
}

// ListByOwner returns the owner's items in insertion order.
func (r *PaletteRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]types.PaletteItem, error) {
	const query = `
		SELECT id, name, image_url, width, height, owner_id, created_at
		FROM palette_items
		WHERE owner_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.PaletteItem, 0)
	for rows.Next() {
		var item types.PaletteItem
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.ImageURL,
			&item.Width,
			&item.Height,
			&item.OwnerID,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *PaletteRepository) Create(ctx context.Context, item types.PaletteItem) (types.PaletteItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO palette_items (id, name, image_url, width, height, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.Name,
		item.ImageURL,
		item.Width,
		item.Height,
		item.OwnerID,
		item.CreatedAt,
	); err != nil {
		return types.PaletteItem{}, err
	}
	return item, nil
}
