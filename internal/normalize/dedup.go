package normalize

import (
	"strings"

	"rfxstream/catalogservice/internal/domain"
)

// Deduplicator keeps the identifiers already emitted by one aggregation batch.
// It is not safe for concurrent use; the owning batch serializes access.
type Deduplicator struct {
	seen map[string]struct{}
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Accept reports whether item is the first one seen with its identifier.
// Items without an identifier or cover are always rejected.
func (d *Deduplicator) Accept(item domain.CanonicalItem) bool {
	id := strings.TrimSpace(item.ID)
	if id == "" || strings.TrimSpace(item.Cover) == "" {
		return false
	}
	if _, exists := d.seen[id]; exists {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

func (d *Deduplicator) Seen() int {
	return len(d.seen)
}

// Normalize runs one payload through Extract, Map and the batch deduplicator.
func Normalize(payload any, table AliasTable, dedup *Deduplicator) []domain.CanonicalItem {
	raw := Extract(payload, table)
	if len(raw) == 0 {
		return nil
	}
	items := make([]domain.CanonicalItem, 0, len(raw))
	for _, record := range raw {
		item, ok := Map(record, table)
		if !ok {
			continue
		}
		if dedup != nil && !dedup.Accept(item) {
			continue
		}
		items = append(items, item)
	}
	return items
}
