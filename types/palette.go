package types

import (
	"time"

	"github.com/google/uuid"
)

// PaletteItem is an uploaded image plus the metadata supplied with it.
type PaletteItem struct {
	ID uuid.UUID `json:"id" db:"id"`

	// Name is the caller-supplied display name. Not unique.
	Name string `json:"name" db:"name"`

	// ImageURL is the public path of the stored file, /uploads/<key>.
	ImageURL string `json:"imageUrl" db:"image_url"`

	// Width and Height are taken from the upload form as-is; they are not
	// checked against the actual image.
	Width  int `json:"width" db:"width"`
	Height int `json:"height" db:"height"`

	// OwnerID references the user who uploaded the item.
	OwnerID uuid.UUID `json:"userId" db:"owner_id"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ItemUploadedEvent is published after a palette item has been stored.
type ItemUploadedEvent struct {
	ItemID     uuid.UUID `json:"itemId"`
	OwnerID    uuid.UUID `json:"userId"`
	Name       string    `json:"name"`
	ImageURL   string    `json:"imageUrl"`
	ObjectKey  string    `json:"objectKey"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}
