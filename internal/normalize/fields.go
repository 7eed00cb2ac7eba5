package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"rfxstream/catalogservice/internal/domain"
)

var leadingNumberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// Fields is the best-effort probe result of one raw record. Every field is optional;
// nothing here asserts a schema.
type Fields struct {
	ID       mo.Option[string]
	Title    mo.Option[string]
	Cover    mo.Option[string]
	Subtitle mo.Option[string]
	Rating   mo.Option[float64]
	Episodes mo.Option[int]
	Year     mo.Option[string]
	Quality  mo.Option[string]
	Duration mo.Option[string]
	Genres   mo.Option[[]string]
}

// Resolve probes every canonical field of record using the table's ranked aliases.
// It only reads the record, so the same record always resolves to the same Fields.
func Resolve(record map[string]any, table AliasTable) Fields {
	return Fields{
		ID:       FirstString(record, table.ID),
		Title:    FirstString(record, table.Title),
		Cover:    FirstString(record, table.Cover),
		Subtitle: FirstString(record, table.Subtitle),
		Rating:   FirstFloat(record, table.Rating),
		Episodes: FirstInt(record, table.Episodes),
		Year:     FirstString(record, table.Year),
		Quality:  FirstString(record, table.Quality),
		Duration: FirstString(record, table.Duration),
		Genres:   FirstStrings(record, table.Genres),
	}
}

// Map turns a raw record into a CanonicalItem. It reports false when the record
// has no usable identifier or cover.
func Map(record map[string]any, table AliasTable) (domain.CanonicalItem, bool) {
	fields := Resolve(record, table)
	if fields.ID.IsAbsent() || fields.Cover.IsAbsent() {
		return domain.CanonicalItem{}, false
	}
	return fields.Item(), true
}

// Item builds a CanonicalItem from resolved fields, filling the title placeholder.
func (f Fields) Item() domain.CanonicalItem {
	item := domain.CanonicalItem{
		ID:       f.ID.OrEmpty(),
		Title:    f.Title.OrElse(domain.UntitledTitle),
		Cover:    f.Cover.OrEmpty(),
		Subtitle: CleanText(f.Subtitle.OrEmpty()),
		Year:     f.Year.OrEmpty(),
		Quality:  f.Quality.OrEmpty(),
		Duration: f.Duration.OrEmpty(),
		Genres:   f.Genres.OrEmpty(),
	}
	if rating, ok := f.Rating.Get(); ok {
		item.Rating = &rating
	}
	if episodes, ok := f.Episodes.Get(); ok {
		item.Episodes = &episodes
	}
	return item
}

func FirstString(record map[string]any, aliases []string) mo.Option[string] {
	for _, alias := range aliases {
		value, ok := Lookup(record, alias)
		if !ok {
			continue
		}
		if text, ok := scalarString(value); ok {
			return mo.Some(text)
		}
	}
	return mo.None[string]()
}

func FirstFloat(record map[string]any, aliases []string) mo.Option[float64] {
	for _, alias := range aliases {
		value, ok := Lookup(record, alias)
		if !ok {
			continue
		}
		if number, ok := scalarFloat(value); ok {
			return mo.Some(number)
		}
	}
	return mo.None[float64]()
}

func FirstInt(record map[string]any, aliases []string) mo.Option[int] {
	for _, alias := range aliases {
		value, ok := Lookup(record, alias)
		if !ok {
			continue
		}
		if number, ok := scalarFloat(value); ok && number >= 0 {
			return mo.Some(int(math.Trunc(number)))
		}
	}
	return mo.None[int]()
}

func FirstStrings(record map[string]any, aliases []string) mo.Option[[]string] {
	for _, alias := range aliases {
		value, ok := Lookup(record, alias)
		if !ok {
			continue
		}
		if values := stringList(value); len(values) > 0 {
			return mo.Some(values)
		}
	}
	return mo.None[[]string]()
}

// Lookup reads a key or a dot path ("taxonomy.Genre.0.name") from a record.
func Lookup(record map[string]any, path string) (any, bool) {
	if record == nil || path == "" {
		return nil, false
	}
	if value, ok := record[path]; ok {
		return value, value != nil
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}

	var current any = record
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}
			current = node[index]
		default:
			return nil, false
		}
	}
	return current, current != nil
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed, trimmed != ""
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

func scalarFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		if parsed, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return parsed, true
		}
		match := leadingNumberPattern.FindString(trimmed)
		if match == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func stringList(value any) []string {
	switch v := value.(type) {
	case string:
		parts := lo.Map(strings.Split(v, ","), func(part string, _ int) string {
			return strings.TrimSpace(part)
		})
		return lo.Compact(parts)
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			switch e := entry.(type) {
			case map[string]any:
				if name, ok := FirstString(e, []string{"name", "title", "tagName"}).Get(); ok {
					out = append(out, name)
				}
			default:
				if text, ok := scalarString(e); ok {
					out = append(out, text)
				}
			}
		}
		return lo.Uniq(out)
	default:
		return nil
	}
}
