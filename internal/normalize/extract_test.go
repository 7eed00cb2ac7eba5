package normalize

import (
	"testing"

	"rfxstream/catalogservice/internal/domain"
)

func mustDecode(t *testing.T, raw string) any {
	t.Helper()
	value, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return value
}

func recordIDs(records []map[string]any) []string {
	ids := make([]string, 0, len(records))
	for _, record := range records {
		id, _ := FirstString(record, []string{"id", "bookId"}).Get()
		ids = append(ids, id)
	}
	return ids
}

func assertIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("unexpected ids: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected ids: got %v want %v", got, want)
		}
	}
}

func TestExtractTopLevelArray(t *testing.T) {
	payload := mustDecode(t, `[{"id":"a"},{"id":"b"},"noise",7]`)
	assertIDs(t, recordIDs(Extract(payload, DefaultTable())), "a", "b")
}

func TestExtractFirstListKeyWins(t *testing.T) {
	payload := mustDecode(t, `{"result":[{"id":"r1"}],"data":[{"id":"d1"}],"list":[{"id":"l1"}]}`)
	assertIDs(t, recordIDs(Extract(payload, DefaultTable())), "d1")
}

func TestExtractEmptyArrayStillMatches(t *testing.T) {
	payload := mustDecode(t, `{"data":[],"result":[{"id":"r1"}]}`)
	if got := Extract(payload, DefaultTable()); len(got) != 0 {
		t.Fatalf("expected empty data list to win, got %v", recordIDs(got))
	}
}

func TestExtractColumnVoList(t *testing.T) {
	payload := mustDecode(t, `{"columnVoList":[
		{"bookList":[{"id":"a","cover":"u"},{"id":"b","cover":"u2"}]},
		{"bookList":[{"id":"c","cover":"u3"}]}
	]}`)
	assertIDs(t, recordIDs(Extract(payload, DefaultTable())), "a", "b", "c")
}

func TestExtractColumnVoListUnderData(t *testing.T) {
	payload := mustDecode(t, `{"data":{"columnVoList":[{"bookList":[{"bookId":"x"}]},{"title":"empty column"}]}}`)
	assertIDs(t, recordIDs(Extract(payload, DefaultTable())), "x")
}

func TestExtractCombinesPartialLists(t *testing.T) {
	payload := mustDecode(t, `{"data":{"hot":[{"id":"h1","cover":"u"}],"new":[{"id":"n1","cover":"u"}]}}`)
	assertIDs(t, recordIDs(Extract(payload, DefaultTable())), "h1", "n1")
}

func TestExtractCombinesPartialListsAtTopLevel(t *testing.T) {
	payload := mustDecode(t, `{"popular":[{"id":"p1"}],"recommend":[{"id":"r1"}],"hot":[{"id":"h1"}]}`)
	assertIDs(t, recordIDs(Extract(payload, DefaultTable())), "h1", "r1", "p1")
}

func TestExtractSinglePartialListUsesKeyOrder(t *testing.T) {
	payload := mustDecode(t, `{"data":[{"id":"d1"}],"popular":[{"id":"p1"}]}`)
	assertIDs(t, recordIDs(Extract(payload, DefaultTable())), "d1")
}

func TestExtractCellBooks(t *testing.T) {
	payload := mustDecode(t, `{"cell":{"books":[{"id":"m1"},{"id":"m2"}]}}`)
	assertIDs(t, recordIDs(Extract(payload, TableFor(domain.ContentShorts))), "m1", "m2")
}

func TestExtractEmptyWrappersFallThrough(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{`{"columnVoList":[],"data":{"list":[{"id":"d1"}]}}`, []string{"d1"}},
		{`{"columnVoList":[{"title":"no books"}],"cell":{"books":[{"id":"c1"}]}}`, []string{"c1"}},
		{`{"cell":{"title":"Shorts","plays":[{"id":"p1"}]}}`, []string{"p1"}},
		{`{"cell":{"list":[{"id":"l1"}]}}`, []string{"l1"}},
	}
	for _, tc := range cases {
		assertIDs(t, recordIDs(Extract(mustDecode(t, tc.raw), TableFor(domain.ContentShorts))), tc.want...)
	}
}

func TestExtractDoubleNestedData(t *testing.T) {
	payload := mustDecode(t, `{"code":0,"data":{"total":2,"data":{"list":[{"id":"x"},{"id":"y"}]}}}`)
	assertIDs(t, recordIDs(Extract(payload, DefaultTable())), "x", "y")
}

func TestExtractNestedResultObject(t *testing.T) {
	payload := mustDecode(t, `{"result":{"items":[{"id":"i1"}]}}`)
	assertIDs(t, recordIDs(Extract(payload, DefaultTable())), "i1")
}

func TestExtractTypeSpecificKeys(t *testing.T) {
	payload := mustDecode(t, `{"animes":[{"id":"a1"}]}`)
	if got := Extract(payload, DefaultTable()); len(got) != 0 {
		t.Fatalf("default table should not know animes, got %v", recordIDs(got))
	}
	assertIDs(t, recordIDs(Extract(payload, TableFor(domain.ContentAnime))), "a1")
}

func TestExtractUnknownShapes(t *testing.T) {
	for _, raw := range []string{`"text"`, `42`, `null`, `{"status":"ok"}`, `{"data":{"meta":1}}`} {
		if got := Extract(mustDecode(t, raw), DefaultTable()); len(got) != 0 {
			t.Fatalf("expected no records for %s, got %d", raw, len(got))
		}
	}
}
