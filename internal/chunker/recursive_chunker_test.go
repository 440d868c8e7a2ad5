package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"ragindex/internal/domain"
)

func TestNewRecursiveChunkerValidation(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
		wantErr       bool
	}{
		{"valid", 512, 50, false},
		{"zero overlap", 10, 0, false},
		{"zero size", 0, 0, true},
		{"negative overlap", 10, -1, true},
		{"overlap equals size", 10, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecursiveChunker(tt.size, tt.overlap)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRecursiveChunker(%d, %d) err = %v, wantErr %v", tt.size, tt.overlap, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSplitEmpty(t *testing.T) {
	c, _ := NewRecursiveChunker(100, 10)
	for _, in := range []string{"", "   ", "\n\n\t"} {
		if got := c.Split(in); len(got) != 0 {
			t.Errorf("Split(%q) = %v, want empty", in, got)
		}
	}
}

func TestSplitPrefersParagraphs(t *testing.T) {
	p1 := strings.Repeat("a", 40)
	p2 := strings.Repeat("b", 40)
	p3 := strings.Repeat("c", 40)
	c, _ := NewRecursiveChunker(50, 5)

	got := c.Split(p1 + "\n\n" + p2 + "\n\n" + p3)
	want := []string{p1, p2, p3}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitFallsBackToSentencesAndWords(t *testing.T) {
	text := "One two three. Four five six. Seven eight nine."
	c, _ := NewRecursiveChunker(16, 0)
	got := c.Split(text)
	if len(got) < 3 {
		t.Fatalf("expected at least 3 chunks, got %q", got)
	}
	for _, ch := range got {
		if utf8.RuneCountInString(ch) > 16 {
			t.Errorf("chunk %q exceeds size", ch)
		}
	}
	if got[0] != "One two three." {
		t.Errorf("first chunk = %q, want sentence boundary", got[0])
	}
}

func TestSplitLongTokenUsesCharacters(t *testing.T) {
	c, _ := NewRecursiveChunker(4, 1)
	got := c.Split("abcdefghij")
	for _, ch := range got {
		if utf8.RuneCountInString(ch) > 4 {
			t.Errorf("chunk %q exceeds size", ch)
		}
	}
	if got[0] != "abcd" {
		t.Errorf("first chunk = %q", got[0])
	}
	if !strings.HasPrefix(got[1], "d") {
		t.Errorf("expected one character of overlap, got %q then %q", got[0], got[1])
	}
}

func TestSplitOverlap(t *testing.T) {
	words := make([]string, 60)
	for i := range words {
		words[i] = fmt.Sprintf("w%02d", i)
	}
	c, _ := NewRecursiveChunker(40, 10)
	got := c.Split(strings.Join(words, " "))
	if len(got) < 2 {
		t.Fatalf("expected several chunks, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		prev := strings.Fields(got[i-1])
		cur := strings.Fields(got[i])
		if prev[len(prev)-1] != cur[0] && prev[len(prev)-2] != cur[0] {
			t.Errorf("chunks %d and %d do not overlap: %q / %q", i-1, i, got[i-1], got[i])
		}
	}
}

func TestSplitCoversInput(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&sb, "Sentence number %d talks about topic %d. ", i, i*7)
		if i%9 == 8 {
			sb.WriteString("\n\n")
		} else if i%4 == 3 {
			sb.WriteString("\n")
		}
	}
	text := sb.String()

	params := [][2]int{{512, 50}, {100, 0}, {64, 63}, {30, 5}, {12, 3}}
	for _, p := range params {
		t.Run(fmt.Sprintf("S%d_O%d", p[0], p[1]), func(t *testing.T) {
			c, err := NewRecursiveChunker(p[0], p[1])
			if err != nil {
				t.Fatal(err)
			}
			chunks := c.Split(text)
			covered := make([]bool, len(text))
			from := 0
			for i, ch := range chunks {
				if utf8.RuneCountInString(ch) > p[0] {
					t.Fatalf("chunk %d has %d chars, limit %d", i, utf8.RuneCountInString(ch), p[0])
				}
				at := strings.Index(text[from:], ch)
				if at < 0 {
					t.Fatalf("chunk %d %q not found in order", i, ch)
				}
				at += from
				for j := at; j < at+len(ch); j++ {
					covered[j] = true
				}
				from = at
			}
			for i, r := range text {
				if !covered[i] && !unicode.IsSpace(r) {
					t.Fatalf("byte %d (%q) not covered by any chunk", i, r)
				}
			}
		})
	}
}

func TestChunkAssignsIndexes(t *testing.T) {
	c, _ := NewRecursiveChunker(10, 0)
	chunks, err := c.Chunk(domain.Document{ID: "d1", Content: "alpha beta gamma delta"})
	if err != nil {
		t.Fatal(err)
	}
	for i, ch := range chunks {
		if ch.Index != i || ch.DocumentID != "d1" {
			t.Errorf("chunk %d = %+v", i, ch)
		}
	}
}

func TestSplitDropsRepeatedChunk(t *testing.T) {
	c, _ := NewRecursiveChunker(10, 9)
	got := c.Split("中  中     中中")
	if len(got) == 0 {
		t.Fatal("no chunks")
	}
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Errorf("chunks %d and %d are both %q: %q", i-1, i, got[i], got)
		}
	}
	joined := strings.Join(got, "")
	if strings.Count(joined, "中") < 4 {
		t.Errorf("content lost: %q", got)
	}
}

func TestChunkRejectsInvalidUTF8(t *testing.T) {
	c, _ := NewRecursiveChunker(10, 0)
	_, err := c.Chunk(domain.Document{Filename: "bad.txt", Content: "ok \xff"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}
