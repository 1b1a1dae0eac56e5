package storage

import (
	"fmt"
	"strconv"
	"strings"

	"gif-api/internal/models"
)

// Queries are written with '?' placeholders and rebound for Postgres.

const gifColumns = "g.id, g.title, g.url, g.nsfw, g.anime, g.created_at"

type labelKind struct {
	table  string
	assoc  string
	column string
}

var (
	tagLabels       = labelKind{table: "tags", assoc: "gif_tags", column: "tag_id"}
	characterLabels = labelKind{table: "characters", assoc: "gif_characters", column: "character_id"}
)

func (k labelKind) insertName() string {
	return fmt.Sprintf("INSERT INTO %s (name) VALUES (?) ON CONFLICT (name) DO NOTHING", k.table)
}

func (k labelKind) selectID() string {
	return fmt.Sprintf("SELECT id FROM %s WHERE name = ?", k.table)
}

func (k labelKind) link() string {
	return fmt.Sprintf("INSERT INTO %s (gif_id, %s) VALUES (?, ?) ON CONFLICT DO NOTHING", k.assoc, k.column)
}

func (k labelKind) unlinkAll() string {
	return fmt.Sprintf("DELETE FROM %s WHERE gif_id = ?", k.assoc)
}

// namesFor selects (gif_id, name) pairs; the caller appends the gif id predicate.
func (k labelKind) namesFor() string {
	return fmt.Sprintf("SELECT a.gif_id, l.name FROM %s a JOIN %s l ON l.id = a.%s WHERE a.gif_id", k.assoc, k.table, k.column)
}

func (k labelKind) distinctNames() string {
	return fmt.Sprintf("SELECT DISTINCT l.name FROM %s l JOIN %s a ON a.%s = l.id ORDER BY l.name", k.table, k.assoc, k.column)
}

type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *whereClause) nsfw(mode models.NSFWMode) {
	switch mode {
	case models.NSFWInclude:
	case models.NSFWOnly:
		w.add("g.nsfw = ?", true)
	default:
		w.add("g.nsfw = ?", false)
	}
}

func (w *whereClause) title(query string) {
	w.add(`LOWER(g.title) LIKE '%' || LOWER(?) || '%' ESCAPE '\'`, escapeLike(query))
}

func (w *whereClause) filter(f RandomFilter) error {
	switch f.Field {
	case FilterNone:
		return nil
	case FilterTag:
		w.add(labelMatch(tagLabels), f.Value)
	case FilterCharacter:
		w.add(labelMatch(characterLabels), f.Value)
	case FilterAnime:
		w.add("LOWER(g.anime) = LOWER(?)", f.Value)
	default:
		return fmt.Errorf("unsupported filter field %q", f.Field)
	}
	return nil
}

func labelMatch(k labelKind) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s a JOIN %s l ON l.id = a.%s WHERE a.gif_id = g.id AND LOWER(l.name) = LOWER(?))", k.assoc, k.table, k.column)
}

func searchQuery(params SearchParams) (string, []any) {
	var where whereClause
	where.title(params.Query)
	where.nsfw(params.NSFW)
	query := "SELECT " + gifColumns + " FROM gifs g" + where.String() + " ORDER BY g.id LIMIT ? OFFSET ?"
	return query, append(where.args, params.Limit, params.Offset)
}

func randomQuery(filter RandomFilter, mode models.NSFWMode) (string, []any, error) {
	var where whereClause
	if err := where.filter(filter); err != nil {
		return "", nil, err
	}
	where.nsfw(mode)
	return "SELECT " + gifColumns + " FROM gifs g" + where.String() + " ORDER BY RANDOM() LIMIT 1", where.args, nil
}

func listTagsQuery(mode models.NSFWMode) (string, []any) {
	var where whereClause
	where.nsfw(mode)
	query := "SELECT DISTINCT t.name FROM tags t JOIN gif_tags gt ON gt.tag_id = t.id JOIN gifs g ON g.id = gt.gif_id" + where.String() + " ORDER BY t.name"
	return query, where.args
}

const (
	selectGifByID   = "SELECT " + gifColumns + " FROM gifs g WHERE g.id = ?"
	selectGifByURL  = "SELECT " + gifColumns + " FROM gifs g WHERE g.url = ?"
	selectGifsAfter = "SELECT " + gifColumns + " FROM gifs g WHERE g.id > ? ORDER BY g.id LIMIT ?"
	updateGifRow    = "UPDATE gifs SET title = ?, url = ?, nsfw = ?, anime = ? WHERE id = ?"
	deleteGifRow    = "DELETE FROM gifs WHERE id = ?"
	countGifs       = "SELECT COUNT(*) FROM gifs"
	listAnime       = "SELECT DISTINCT anime FROM gifs WHERE anime IS NOT NULL AND anime <> '' ORDER BY anime"
)

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// rebind converts '?' placeholders into Postgres positional parameters.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGif(row rowScanner) (models.Gif, error) {
	var (
		gif   models.Gif
		anime *string
	)
	if err := row.Scan(&gif.ID, &gif.Title, &gif.URL, &gif.NSFW, &anime, &gif.CreatedAt); err != nil {
		return models.Gif{}, err
	}
	gif.Anime = anime
	gif.CreatedAt = gif.CreatedAt.UTC()
	gif.Characters = []string{}
	gif.Tags = []string{}
	return gif, nil
}

// applyUpdate folds the set fields of update into gif.
func applyUpdate(gif models.Gif, update models.GifUpdate) models.Gif {
	if update.Title.Set {
		gif.Title = update.Title.Value
	}
	if update.URL.Set {
		gif.URL = update.URL.Value
	}
	if update.NSFW.Set {
		gif.NSFW = update.NSFW.Value
	}
	if update.Anime.Set {
		if update.Anime.Null {
			gif.Anime = nil
		} else {
			value := update.Anime.Value
			gif.Anime = &value
		}
	}
	if update.Characters.Set {
		gif.Characters = update.Characters.Value
	}
	if update.Tags.Set {
		gif.Tags = update.Tags.Value
	}
	return gif
}

func gifIDs(gifs []models.Gif) []int64 {
	ids := make([]int64, len(gifs))
	for i, gif := range gifs {
		ids[i] = gif.ID
	}
	return ids
}

// attachLabels assigns loaded (gif_id, name) pairs onto gifs. Names arrive sorted.
func attachLabels(gifs []models.Gif, tags, characters map[int64][]string) {
	for i := range gifs {
		if names, ok := tags[gifs[i].ID]; ok {
			gifs[i].Tags = names
		}
		if names, ok := characters[gifs[i].ID]; ok {
			gifs[i].Characters = names
		}
	}
}
