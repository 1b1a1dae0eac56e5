package storage

import (
	"context"
	"errors"

	"gif-api/internal/models"
)

var (
	// ErrNotFound is returned when no gif matches the requested id, url or filter.
	ErrNotFound = errors.New("gif not found")
	// ErrDuplicateURL is returned when a write would give two gifs the same url.
	ErrDuplicateURL = errors.New("gif url already exists")
)

// FilterField names the label a random pick is restricted by.
type FilterField string

const (
	FilterNone      FilterField = ""
	FilterTag       FilterField = "tag"
	FilterAnime     FilterField = "anime"
	FilterCharacter FilterField = "character"
)

// RandomFilter restricts RandomGif to gifs whose label matches Value,
// compared case-insensitively.
type RandomFilter struct {
	Field FilterField
	Value string
}

// SearchParams drives a case-insensitive title-contains search.
type SearchParams struct {
	Query  string
	NSFW   models.NSFWMode
	Limit  int
	Offset int
}

// Repository exposes the gif operations required by the query resolver,
// the write service and operator tooling.
type Repository interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	CreateGif(ctx context.Context, in models.GifInput) (models.Gif, error)
	// ImportGif inserts a gif keeping its created_at. The id is reassigned.
	ImportGif(ctx context.Context, gif models.Gif) (models.Gif, error)
	UpdateGif(ctx context.Context, id int64, update models.GifUpdate) (models.Gif, error)
	DeleteGif(ctx context.Context, id int64) error
	GetGif(ctx context.Context, id int64) (models.Gif, error)
	FindGifByURL(ctx context.Context, url string) (models.Gif, error)

	SearchByTitle(ctx context.Context, params SearchParams) ([]models.Gif, error)
	RandomGif(ctx context.Context, filter RandomFilter, mode models.NSFWMode) (models.Gif, error)
	// ListGifs pages through every gif ordered by id, starting after afterID.
	ListGifs(ctx context.Context, afterID int64, limit int) ([]models.Gif, error)
	CountGifs(ctx context.Context) (int, error)

	ListTags(ctx context.Context, mode models.NSFWMode) ([]string, error)
	ListAnime(ctx context.Context) ([]string, error)
	ListCharacters(ctx context.Context) ([]string, error)
}
