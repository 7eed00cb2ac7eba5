package normalize

import (
	"github.com/samber/lo"

	"rfxstream/catalogservice/internal/domain"
)

// AliasTable holds the ranked alias keys used to probe one content type's records.
type AliasTable struct {
	ListKeys []string
	ID       []string
	Title    []string
	Cover    []string
	Subtitle []string
	Rating   []string
	Episodes []string
	Year     []string
	Quality  []string
	Duration []string
	Genres   []string
}

// partialListKeys are sibling arrays that each carry a slice of one feed.
var partialListKeys = []string{"hot", "new", "recommend", "popular", "trending", "latest", "member"}

var defaultTable = AliasTable{
	ListKeys: []string{
		"data", "result", "list", "items", "dramas", "videos", "books", "content",
		"results", "records", "rows", "series", "shows",
	},
	ID:    []string{"bookId", "id", "drama_id", "manga_id", "shortPlayId", "series_id", "playlet_id", "slug"},
	Title: []string{"bookName", "title", "name", "shortPlayName", "playlet_title", "judul"},
	Cover: []string{
		"coverWap", "cover", "poster", "cover_url", "image", "thumbnail", "cover_image_url",
		"cover_portrait_url", "coverImg", "picUrl", "img", "posterUrl", "coverUrl", "coverImage",
	},
	Subtitle: []string{"introduction", "description", "synopsis"},
	Rating:   []string{"score", "rating", "user_rate"},
	Episodes: []string{
		"chapterCount", "episodes", "total_episodes", "total_episode", "episode_count",
		"latest_chapter_number", "chapters", "episodeCount",
	},
	Year:     []string{"year", "release_year"},
	Quality:  []string{"quality"},
	Duration: []string{"duration"},
	Genres:   []string{"tags", "genres", "genre", "categories", "taxonomy.Genre"},
}

var tables = map[domain.ContentType]AliasTable{
	domain.ContentDrama: extend(defaultTable, AliasTable{
		ListKeys: []string{"dataList"},
	}),
	domain.ContentAnime: extend(defaultTable, AliasTable{
		ListKeys: []string{"animes", "movies"},
		ID:       []string{"id", "url", "urlId"},
		Title:    []string{"title", "judul"},
		Cover:    []string{"cover", "poster"},
		Episodes: []string{"episodes", "total_episode", "episodeCount"},
	}),
	domain.ContentKomik: extend(defaultTable, AliasTable{
		ListKeys: []string{"comics", "mangas"},
		ID:       []string{"manga_id", "id"},
		Title:    []string{"title", "name"},
		Cover:    []string{"cover_image_url", "cover_portrait_url", "cover", "thumbnail", "image"},
		Rating:   []string{"user_rate", "rating", "score"},
		Episodes: []string{"latest_chapter_number", "chapters"},
		Genres:   []string{"taxonomy.Genre", "genres", "genre"},
	}),
	domain.ContentShorts: extend(defaultTable, AliasTable{
		ListKeys: []string{"plays", "shortPlays", "dataList"},
		ID:       []string{"id", "bookId", "drama_id", "shortPlayId", "playlet_id", "slug"},
		Title:    []string{"title", "bookName", "name", "shortPlayName", "playlet_title"},
		Cover:    []string{"cover", "coverWap", "poster", "cover_url", "image", "thumbnail", "coverUrl", "coverImage"},
	}),
}

// TableFor returns the alias table of a content type, or the shared default.
func TableFor(contentType domain.ContentType) AliasTable {
	if table, ok := tables[contentType]; ok {
		return table
	}
	return DefaultTable()
}

func DefaultTable() AliasTable {
	return extend(defaultTable, AliasTable{})
}

// extend puts the lead aliases ahead of the base ones, keeping the first occurrence of each key.
func extend(base, lead AliasTable) AliasTable {
	merge := func(first, rest []string) []string {
		return lo.Uniq(append(append([]string(nil), first...), rest...))
	}
	return AliasTable{
		ListKeys: merge(base.ListKeys, append(lead.ListKeys, partialListKeys...)),
		ID:       merge(lead.ID, base.ID),
		Title:    merge(lead.Title, base.Title),
		Cover:    merge(lead.Cover, base.Cover),
		Subtitle: merge(lead.Subtitle, base.Subtitle),
		Rating:   merge(lead.Rating, base.Rating),
		Episodes: merge(lead.Episodes, base.Episodes),
		Year:     merge(lead.Year, base.Year),
		Quality:  merge(lead.Quality, base.Quality),
		Duration: merge(lead.Duration, base.Duration),
		Genres:   merge(lead.Genres, base.Genres),
	}
}
