package models

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Gif is a stored media record together with its label sets.
type Gif struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	NSFW       bool      `json:"nsfw"`
	Anime      *string   `json:"anime"`
	CreatedAt  time.Time `json:"created_at"`
	Characters []string  `json:"characters"`
	Tags       []string  `json:"tags"`
}

// GifInput carries the fields accepted when creating (or replacing) a gif.
type GifInput struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	NSFW       *bool    `json:"nsfw"`
	Anime      *string  `json:"anime"`
	Characters []string `json:"characters"`
	Tags       []string `json:"tags"`
}

// ErrInvalidGif wraps every validation failure produced by GifInput and GifUpdate.
var ErrInvalidGif = errors.New("invalid gif")

// Validate checks the input and normalises labels in place.
func (in *GifInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidGif)
	}
	normalized, err := NormalizeURL(in.URL)
	if err != nil {
		return err
	}
	in.URL = normalized
	if in.NSFW == nil {
		return fmt.Errorf("%w: nsfw is required", ErrInvalidGif)
	}
	in.Anime = normalizeAnime(in.Anime)
	in.Characters = NormalizeLabels(in.Characters)
	in.Tags = NormalizeLabels(in.Tags)
	return nil
}

// GifUpdate describes a partial update. Unset fields keep their stored value;
// set fields overwrite it, including an explicitly empty label list.
type GifUpdate struct {
	Title      Optional[string]   `json:"title"`
	URL        Optional[string]   `json:"url"`
	NSFW       Optional[bool]     `json:"nsfw"`
	Anime      Optional[string]   `json:"anime"`
	Characters Optional[[]string] `json:"characters"`
	Tags       Optional[[]string] `json:"tags"`
}

// Validate rejects null values for non-nullable fields and normalises the rest.
// A null anime clears the stored label.
func (u *GifUpdate) Validate() error {
	if u.Title.Null || u.URL.Null || u.NSFW.Null {
		return fmt.Errorf("%w: title, url and nsfw cannot be null", ErrInvalidGif)
	}
	if u.Characters.Null || u.Tags.Null {
		return fmt.Errorf("%w: characters and tags cannot be null, use [] to clear", ErrInvalidGif)
	}
	if u.Title.Set {
		u.Title.Value = strings.TrimSpace(u.Title.Value)
		if u.Title.Value == "" {
			return fmt.Errorf("%w: title cannot be empty", ErrInvalidGif)
		}
	}
	if u.URL.Set {
		normalized, err := NormalizeURL(u.URL.Value)
		if err != nil {
			return err
		}
		u.URL.Value = normalized
	}
	if u.Anime.Set && !u.Anime.Null {
		if trimmed := strings.TrimSpace(u.Anime.Value); trimmed == "" {
			u.Anime = Null[string]()
		} else {
			u.Anime.Value = trimmed
		}
	}
	if u.Characters.Set {
		u.Characters.Value = NormalizeLabels(u.Characters.Value)
	}
	if u.Tags.Set {
		u.Tags.Value = NormalizeLabels(u.Tags.Value)
	}
	return nil
}

// Empty reports whether the update changes nothing.
func (u GifUpdate) Empty() bool {
	return !u.Title.Set && !u.URL.Set && !u.NSFW.Set && !u.Anime.Set && !u.Characters.Set && !u.Tags.Set
}

// ReplaceWith builds the update that overwrites every mutable field with the input.
// The url is left untouched since it identifies the record being replaced.
func ReplaceWith(in GifInput) GifUpdate {
	update := GifUpdate{
		Title:      Some(in.Title),
		Characters: Some(in.Characters),
		Tags:       Some(in.Tags),
	}
	if in.NSFW != nil {
		update.NSFW = Some(*in.NSFW)
	}
	if in.Anime != nil {
		update.Anime = Some(*in.Anime)
	} else {
		update.Anime = Null[string]()
	}
	return update
}

// NormalizeURL requires an absolute http(s) URL with a host.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidGif)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: url: %v", ErrInvalidGif, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: url must use http or https", ErrInvalidGif)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: url must include a host", ErrInvalidGif)
	}
	return trimmed, nil
}

// NormalizeLabels trims labels, drops empty ones and collapses duplicates.
// The result is sorted and never nil.
func NormalizeLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}

func normalizeAnime(anime *string) *string {
	if anime == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*anime)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
