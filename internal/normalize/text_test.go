package normalize

import "testing"

func TestCleanText(t *testing.T) {
	cases := map[string]string{
		"<p>Intro &amp; more</p>":       "Intro & more",
		"  line one<br/>line   two  ":   "line one line two",
		"plain":                         "plain",
		"":                              "",
		"&lt;b&gt;escaped&lt;/b&gt; ok": "escaped ok",
	}
	for input, want := range cases {
		if got := CleanText(input); got != want {
			t.Errorf("CleanText(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMapCleansSubtitle(t *testing.T) {
	record := mustRecord(t, `{"id":"s1","cover":"http://c","introduction":"<p>A &quot;CEO&quot;\nreturns</p>"}`)
	item, ok := Map(record, DefaultTable())
	if !ok {
		t.Fatal("expected record to map")
	}
	if item.Subtitle != `A "CEO" returns` {
		t.Fatalf("unexpected subtitle: %q", item.Subtitle)
	}
}
