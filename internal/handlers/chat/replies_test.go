package chat

import "testing"

func TestWordSetMatchesWholeWordsOnly(t *testing.T) {
	t.Parallel()
	words := wordSet(`Hello, WORLD! (this is "spam", right?)`)

	for _, want := range []string{"hello", "world", "this", "is", "spam", "right"} {
		if !words[want] {
			t.Fatalf("wordSet missing %q", want)
		}
	}
	if words["spa"] || words["ello"] {
		t.Fatal("substrings must not match")
	}
	if words["hello,"] || words["world!"] {
		t.Fatal("punctuation must be stripped")
	}
}

func TestWordSetDropsBarePunctuation(t *testing.T) {
	t.Parallel()
	words := wordSet("!! ok ...")
	if words[""] {
		t.Fatal("empty word must not be stored")
	}
	if !words["ok"] {
		t.Fatal("ok should survive")
	}
}
