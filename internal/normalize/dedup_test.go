package normalize

import (
	"testing"

	"rfxstream/catalogservice/internal/domain"
)

func TestDeduplicatorFirstSeenWins(t *testing.T) {
	dedup := NewDeduplicator()
	if !dedup.Accept(domain.CanonicalItem{ID: "a", Cover: "u"}) {
		t.Fatal("expected first item to be accepted")
	}
	if dedup.Accept(domain.CanonicalItem{ID: "a", Cover: "other"}) {
		t.Fatal("expected duplicate id to be rejected")
	}
	if dedup.Accept(domain.CanonicalItem{ID: "b"}) {
		t.Fatal("expected item without cover to be rejected")
	}
	if dedup.Seen() != 1 {
		t.Fatalf("unexpected seen count: %d", dedup.Seen())
	}
}

func TestNormalizeAcrossPayloads(t *testing.T) {
	dedup := NewDeduplicator()
	first := Normalize(mustDecode(t, `{"data":[{"bookId":"dup1","cover":"u"},{"bookId":"x","cover":"u"}]}`), DefaultTable(), dedup)
	second := Normalize(mustDecode(t, `[{"bookId":"dup1","cover":"other"},{"id":"nocover"}]`), DefaultTable(), dedup)

	if len(first) != 2 {
		t.Fatalf("unexpected first batch: %#v", first)
	}
	if len(second) != 0 {
		t.Fatalf("expected duplicate and coverless records to be dropped: %#v", second)
	}
}

func TestSeparateBatchesDoNotShareState(t *testing.T) {
	payload := mustDecode(t, `[{"id":"same","cover":"u"}]`)
	if got := Normalize(payload, DefaultTable(), NewDeduplicator()); len(got) != 1 {
		t.Fatalf("unexpected first batch: %d", len(got))
	}
	if got := Normalize(payload, DefaultTable(), NewDeduplicator()); len(got) != 1 {
		t.Fatalf("unexpected second batch: %d", len(got))
	}
}
