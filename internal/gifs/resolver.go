// Package gifs resolves the unified gif query into a single read mode and
// implements the upsert-by-url write path over a storage.Repository.
package gifs

import (
	"strconv"
	"strings"

	"gif-api/internal/models"
	"gif-api/internal/storage"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Mode is the read operation a Query resolves to.
type Mode int

const (
	ModeListTags Mode = iota + 1
	ModeSearchTitle
	ModeRandomByFilter
	ModeRandom
)

func (m Mode) String() string {
	switch m {
	case ModeListTags:
		return "list_tags"
	case ModeSearchTitle:
		return "search_title"
	case ModeRandomByFilter:
		return "random_by_filter"
	case ModeRandom:
		return "random"
	default:
		return "unknown"
	}
}

// Query holds raw query-string values. Q and List are pointers so presence
// can be told apart from an empty value.
type Query struct {
	Q         *string
	Tag       string
	Anime     string
	Character string
	List      *string
	NSFW      string
	Limit     string
	Offset    string
}

// Plan is a validated Query.
type Plan struct {
	Mode   Mode
	NSFW   models.NSFWMode
	Search storage.SearchParams
	Filter storage.RandomFilter
}

// Resolve validates q and picks its mode. The first matching rule wins:
// list, then q, then a single label filter, then a plain random pick.
func Resolve(q Query) (Plan, error) {
	return resolve(q, models.NSFWExclude)
}

func resolve(q Query, fallback models.NSFWMode) (Plan, error) {
	mode, err := models.ParseNSFWMode(q.NSFW, fallback)
	if err != nil {
		return Plan{}, invalidf("%s", err.Error())
	}
	limit, offset, err := parsePage(q.Limit, q.Offset)
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{NSFW: mode}

	if q.List != nil {
		if !strings.EqualFold(strings.TrimSpace(*q.List), "tags") {
			return Plan{}, invalidf("unsupported list value, use list=tags")
		}
		plan.Mode = ModeListTags
		return plan, nil
	}

	filters := presentFilters(q)
	if q.Q != nil {
		if len(filters) > 0 {
			return Plan{}, invalidf("use either q or one of tag/anime/character")
		}
		plan.Mode = ModeSearchTitle
		plan.Search = storage.SearchParams{Query: strings.TrimSpace(*q.Q), NSFW: mode, Limit: limit, Offset: offset}
		return plan, nil
	}

	switch len(filters) {
	case 0:
		plan.Mode = ModeRandom
	case 1:
		plan.Mode = ModeRandomByFilter
		plan.Filter = filters[0]
	default:
		return Plan{}, invalidf("use only one of tag, anime or character")
	}
	return plan, nil
}

func presentFilters(q Query) []storage.RandomFilter {
	var filters []storage.RandomFilter
	for _, f := range []storage.RandomFilter{
		{Field: storage.FilterTag, Value: q.Tag},
		{Field: storage.FilterAnime, Value: q.Anime},
		{Field: storage.FilterCharacter, Value: q.Character},
	} {
		if value := strings.TrimSpace(f.Value); value != "" {
			f.Value = value
			filters = append(filters, f)
		}
	}
	return filters
}

func parsePage(rawLimit, rawOffset string) (int, int, error) {
	limit := DefaultLimit
	if raw := strings.TrimSpace(rawLimit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxLimit {
			return 0, 0, invalidf("limit must be an integer between 1 and %d", MaxLimit)
		}
		limit = n
	}
	offset := 0
	if raw := strings.TrimSpace(rawOffset); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, invalidf("offset must be a non-negative integer")
		}
		offset = n
	}
	return limit, offset, nil
}
