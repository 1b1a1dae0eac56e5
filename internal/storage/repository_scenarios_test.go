package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"gif-api/internal/models"
)

// RepositoryFactory constructs an empty repository for cross-datastore
// scenario assertions.
type RepositoryFactory func(t *testing.T) Repository

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func createGif(t *testing.T, repo Repository, in models.GifInput) models.Gif {
	t.Helper()
	require.NoError(t, in.Validate())
	gif, err := repo.CreateGif(context.Background(), in)
	require.NoError(t, err)
	return gif
}

// RunRepositoryCRUD covers create, lookup, partial update and delete.
func RunRepositoryCRUD(t *testing.T, factory RepositoryFactory) {
	ctx := context.Background()
	repo := factory(t)

	created := createGif(t, repo, models.GifInput{
		Title:      "Wave",
		URL:        "http://a/1.gif",
		NSFW:       boolPtr(false),
		Anime:      strPtr("Re:Zero"),
		Characters: []string{"Rem", "Ram"},
		Tags:       []string{"wave", "happy"},
	})
	require.NotZero(t, created.ID)
	assert.Equal(t, []string{"happy", "wave"}, created.Tags)
	assert.Equal(t, []string{"Ram", "Rem"}, created.Characters)
	assert.False(t, created.CreatedAt.IsZero())

	byURL, err := repo.FindGifByURL(ctx, "http://a/1.gif")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byURL.ID)

	updated, err := repo.UpdateGif(ctx, created.ID, models.GifUpdate{Title: models.Some("Wave again")})
	require.NoError(t, err)
	assert.Equal(t, "Wave again", updated.Title)
	assert.Equal(t, []string{"happy", "wave"}, updated.Tags, "omitted tags must be preserved")
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt), "created_at must not change")

	cleared, err := repo.UpdateGif(ctx, created.ID, models.GifUpdate{
		Tags:  models.Some([]string{}),
		Anime: models.Null[string](),
	})
	require.NoError(t, err)
	assert.Empty(t, cleared.Tags)
	assert.NotNil(t, cleared.Tags)
	assert.Nil(t, cleared.Anime)
	assert.Equal(t, []string{"Ram", "Rem"}, cleared.Characters)

	_, err = repo.UpdateGif(ctx, created.ID+1000, models.GifUpdate{Title: models.Some("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.DeleteGif(ctx, created.ID))
	_, err = repo.GetGif(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.DeleteGif(ctx, created.ID), ErrNotFound)

	count, err := repo.CountGifs(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// RunRepositoryDuplicateURL checks that the unique url constraint surfaces as ErrDuplicateURL.
func RunRepositoryDuplicateURL(t *testing.T, factory RepositoryFactory) {
	ctx := context.Background()
	repo := factory(t)

	first := createGif(t, repo, models.GifInput{Title: "A", URL: "http://a/1.gif", NSFW: boolPtr(false)})
	createGif(t, repo, models.GifInput{Title: "B", URL: "http://a/2.gif", NSFW: boolPtr(false)})

	_, err := repo.CreateGif(ctx, models.GifInput{Title: "C", URL: "http://a/1.gif", NSFW: boolPtr(false), Tags: []string{}, Characters: []string{}})
	assert.ErrorIs(t, err, ErrDuplicateURL)

	_, err = repo.UpdateGif(ctx, first.ID, models.GifUpdate{URL: models.Some("http://a/2.gif")})
	assert.ErrorIs(t, err, ErrDuplicateURL)

	count, err := repo.CountGifs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// RunRepositoryQueries covers title search, random picks, label listing and nsfw filtering.
func RunRepositoryQueries(t *testing.T, factory RepositoryFactory) {
	ctx := context.Background()
	repo := factory(t)

	safe := createGif(t, repo, models.GifInput{Title: "Happy Dance", URL: "http://a/1.gif", NSFW: boolPtr(false), Anime: strPtr("Konosuba"), Characters: []string{"Aqua"}, Tags: []string{"dance"}})
	flagged := createGif(t, repo, models.GifInput{Title: "Spicy dance", URL: "http://a/2.gif", NSFW: boolPtr(true), Anime: strPtr("Konosuba"), Characters: []string{"Darkness"}, Tags: []string{"spicy", "dance"}})
	createGif(t, repo, models.GifInput{Title: "100% wave_", URL: "http://a/3.gif", NSFW: boolPtr(false), Tags: []string{"wave"}})

	results, err := repo.SearchByTitle(ctx, SearchParams{Query: "DANCE", NSFW: models.NSFWInclude, Limit: 50})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, safe.ID, results[0].ID)
	assert.Equal(t, flagged.ID, results[1].ID)

	results, err = repo.SearchByTitle(ctx, SearchParams{Query: "dance", NSFW: models.NSFWExclude, Limit: 50})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].NSFW)

	results, err = repo.SearchByTitle(ctx, SearchParams{Query: "dance", NSFW: models.NSFWOnly, Limit: 50})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].NSFW)

	results, err = repo.SearchByTitle(ctx, SearchParams{Query: "dance", NSFW: models.NSFWInclude, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, flagged.ID, results[0].ID)

	results, err = repo.SearchByTitle(ctx, SearchParams{Query: "%", NSFW: models.NSFWInclude, Limit: 50})
	require.NoError(t, err)
	require.Len(t, results, 1, "like wildcards must be matched literally")

	results, err = repo.SearchByTitle(ctx, SearchParams{Query: "nothing", NSFW: models.NSFWInclude, Limit: 50})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	pick, err := repo.RandomGif(ctx, RandomFilter{Field: FilterTag, Value: "SPICY"}, models.NSFWInclude)
	require.NoError(t, err)
	assert.Equal(t, flagged.ID, pick.ID)

	_, err = repo.RandomGif(ctx, RandomFilter{Field: FilterTag, Value: "spicy"}, models.NSFWExclude)
	assert.ErrorIs(t, err, ErrNotFound)

	pick, err = repo.RandomGif(ctx, RandomFilter{Field: FilterCharacter, Value: "aqua"}, models.NSFWExclude)
	require.NoError(t, err)
	assert.Equal(t, safe.ID, pick.ID)

	pick, err = repo.RandomGif(ctx, RandomFilter{Field: FilterAnime, Value: "konosuba"}, models.NSFWOnly)
	require.NoError(t, err)
	assert.Equal(t, flagged.ID, pick.ID)

	for i := 0; i < 20; i++ {
		pick, err = repo.RandomGif(ctx, RandomFilter{}, models.NSFWExclude)
		require.NoError(t, err)
		assert.False(t, pick.NSFW)
	}

	tags, err := repo.ListTags(ctx, models.NSFWInclude)
	require.NoError(t, err)
	assert.Equal(t, []string{"dance", "spicy", "wave"}, tags)

	tags, err = repo.ListTags(ctx, models.NSFWExclude)
	require.NoError(t, err)
	assert.Equal(t, []string{"dance", "wave"}, tags)

	anime, err := repo.ListAnime(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Konosuba"}, anime)

	characters, err := repo.ListCharacters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Aqua", "Darkness"}, characters)

	page, err := repo.ListGifs(ctx, safe.ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, flagged.ID, page[0].ID)
}

// RunRepositoryRandomEmpty checks that an empty table yields ErrNotFound.
func RunRepositoryRandomEmpty(t *testing.T, factory RepositoryFactory) {
	repo := factory(t)
	_, err := repo.RandomGif(context.Background(), RandomFilter{}, models.NSFWInclude)
	assert.ErrorIs(t, err, ErrNotFound)
}

// RunRepositoryImport checks that imported gifs keep their timestamps and labels.
func RunRepositoryImport(t *testing.T, factory RepositoryFactory) {
	ctx := context.Background()
	repo := factory(t)

	createdAt := time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)
	imported, err := repo.ImportGif(ctx, models.Gif{
		ID:         99,
		Title:      "Old",
		URL:        "http://a/old.gif",
		CreatedAt:  createdAt,
		Tags:       []string{"b", "a", "a"},
		Characters: nil,
	})
	require.NoError(t, err)
	assert.True(t, createdAt.Equal(imported.CreatedAt))
	assert.Equal(t, []string{"a", "b"}, imported.Tags)
	assert.Empty(t, imported.Characters)
}

// RunRepositoryConcurrentWrites interleaves updates of one gif with inserts of
// new ones; every write must succeed.
func RunRepositoryConcurrentWrites(t *testing.T, factory RepositoryFactory) {
	ctx := context.Background()
	repo := factory(t)

	target := createGif(t, repo, models.GifInput{
		Title:      "Target",
		URL:        "http://a/target.gif",
		NSFW:       boolPtr(false),
		Characters: []string{},
		Tags:       []string{"wave"},
	})

	const writers = 40
	var group errgroup.Group
	for i := 0; i < writers; i++ {
		i := i
		group.Go(func() error {
			if i%2 == 0 {
				_, err := repo.UpdateGif(ctx, target.ID, models.GifUpdate{
					Title: models.Some(fmt.Sprintf("Target %d", i)),
					Tags:  models.Some([]string{fmt.Sprintf("tag-%d", i)}),
				})
				return err
			}
			_, err := repo.CreateGif(ctx, models.GifInput{
				Title:      fmt.Sprintf("Gif %d", i),
				URL:        fmt.Sprintf("http://a/%d.gif", i),
				NSFW:       boolPtr(false),
				Characters: []string{},
				Tags:       []string{"wave"},
			})
			return err
		})
	}
	require.NoError(t, group.Wait())

	count, err := repo.CountGifs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1+writers/2, count)

	stored, err := repo.GetGif(ctx, target.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Tags, 1)
}
