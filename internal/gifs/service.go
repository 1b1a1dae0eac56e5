package gifs

import (
	"context"
	"errors"
	"fmt"

	"gif-api/internal/models"
	"gif-api/internal/storage"
	"gif-api/internal/suggest"
)

// Result carries the outcome of Fetch. Exactly one of Gifs, Gif or Tags is
// meaningful, according to Mode.
type Result struct {
	Mode Mode
	Gifs []models.Gif
	Gif  models.Gif
	Tags []string
}

// AdminQuery holds the raw values accepted by the admin search.
type AdminQuery struct {
	Q      string
	NSFW   string
	Limit  string
	Offset string
}

// Service runs resolved queries and writes against a Repository.
type Service struct {
	repo         storage.Repository
	suggestLimit int
}

// NewService constructs a Service over repo.
func NewService(repo storage.Repository) *Service {
	return &Service{repo: repo, suggestLimit: suggest.DefaultLimit}
}

// Fetch resolves q and executes the resulting plan.
func (s *Service) Fetch(ctx context.Context, q Query) (Result, error) {
	plan, err := Resolve(q)
	if err != nil {
		return Result{}, err
	}
	return s.Execute(ctx, plan)
}

// Execute runs an already resolved plan.
func (s *Service) Execute(ctx context.Context, plan Plan) (Result, error) {
	result := Result{Mode: plan.Mode}
	switch plan.Mode {
	case ModeListTags:
		tags, err := s.repo.ListTags(ctx, plan.NSFW)
		if err != nil {
			return Result{}, fmt.Errorf("list tags: %w", err)
		}
		result.Tags = tags
	case ModeSearchTitle:
		found, err := s.repo.SearchByTitle(ctx, plan.Search)
		if err != nil {
			return Result{}, fmt.Errorf("search gifs: %w", err)
		}
		result.Gifs = found
	case ModeRandomByFilter:
		gif, err := s.repo.RandomGif(ctx, plan.Filter, plan.NSFW)
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, s.filterMiss(ctx, plan.Filter)
		}
		if err != nil {
			return Result{}, fmt.Errorf("pick gif by %s: %w", plan.Filter.Field, err)
		}
		result.Gif = gif
	case ModeRandom:
		gif, err := s.repo.RandomGif(ctx, storage.RandomFilter{}, plan.NSFW)
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, notFoundf("no gifs in database")
		}
		if err != nil {
			return Result{}, fmt.Errorf("pick gif: %w", err)
		}
		result.Gif = gif
	default:
		return Result{}, fmt.Errorf("unsupported mode %v", plan.Mode)
	}
	return result, nil
}

// filterMiss builds the NotFound error for a label filter. Tag misses carry
// no suggestions; anime and character misses rank the full label universe.
func (s *Service) filterMiss(ctx context.Context, filter storage.RandomFilter) error {
	miss := notFoundf("no gifs found for %s %q", filter.Field, filter.Value)
	var (
		universe []string
		err      error
	)
	switch filter.Field {
	case storage.FilterAnime:
		universe, err = s.repo.ListAnime(ctx)
	case storage.FilterCharacter:
		universe, err = s.repo.ListCharacters(ctx)
	default:
		return miss
	}
	if err != nil {
		return fmt.Errorf("list %s suggestions: %w", filter.Field, err)
	}
	miss.Suggestions = suggest.Rank(filter.Value, universe, s.suggestLimit)
	return miss
}

// Save inserts in, or replaces the gif that already has its url. created
// reports which happened.
func (s *Service) Save(ctx context.Context, in models.GifInput) (models.Gif, bool, error) {
	if err := in.Validate(); err != nil {
		return models.Gif{}, false, classify("validate gif", err)
	}
	existing, err := s.repo.FindGifByURL(ctx, in.URL)
	switch {
	case err == nil:
		updated, err := s.repo.UpdateGif(ctx, existing.ID, models.ReplaceWith(in))
		if err != nil {
			return models.Gif{}, false, classify("replace gif", err)
		}
		return updated, false, nil
	case errors.Is(err, storage.ErrNotFound):
		created, err := s.repo.CreateGif(ctx, in)
		if err != nil {
			return models.Gif{}, false, classify("create gif", err)
		}
		return created, true, nil
	default:
		return models.Gif{}, false, classify("find gif by url", err)
	}
}

// Update applies a partial update to gif id.
func (s *Service) Update(ctx context.Context, id int64, update models.GifUpdate) (models.Gif, error) {
	if err := update.Validate(); err != nil {
		return models.Gif{}, classify("validate update", err)
	}
	if update.Empty() {
		return s.Get(ctx, id)
	}
	gif, err := s.repo.UpdateGif(ctx, id, update)
	if err != nil {
		return models.Gif{}, classify("update gif", err)
	}
	return gif, nil
}

func (s *Service) Get(ctx context.Context, id int64) (models.Gif, error) {
	gif, err := s.repo.GetGif(ctx, id)
	if err != nil {
		return models.Gif{}, classify("get gif", err)
	}
	return gif, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return classify("delete gif", s.repo.DeleteGif(ctx, id))
}

// AdminSearch is a title search that includes nsfw gifs unless told otherwise.
func (s *Service) AdminSearch(ctx context.Context, q AdminQuery) ([]models.Gif, error) {
	title := q.Q
	plan, err := resolve(Query{Q: &title, NSFW: q.NSFW, Limit: q.Limit, Offset: q.Offset}, models.NSFWInclude)
	if err != nil {
		return nil, err
	}
	result, err := s.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	return result.Gifs, nil
}
