package search

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleGuide = `# Binding

Cut binding strips 2.5 inches wide on the straight grain.
Join them with diagonal seams.

# Batting

| Fiber | Loft | Best for |
| --- | :---: | --- |
| Cotton | Low | Wall hangings |
| Polyester | High |  |

Wash cotton batting before use if you want no shrinkage.
`

func TestParseGuide_SectionsParagraphsAndTables(t *testing.T) {
	docs, err := ParseGuide(strings.NewReader(sampleGuide))
	if err != nil {
		t.Fatalf("ParseGuide: %v", err)
	}
	if len(docs) != 4 {
		t.Fatalf("expected 4 documents, got %d: %+v", len(docs), docs)
	}

	if docs[0].ID != "guide:1" || docs[0].Title != "Binding" ||
		docs[0].Text != "Cut binding strips 2.5 inches wide on the straight grain. Join them with diagonal seams." {
		t.Fatalf("paragraph not joined: %+v", docs[0])
	}
	if docs[1].Title != "Batting" || docs[1].Text != "Fiber: Cotton; Loft: Low; Best for: Wall hangings" {
		t.Fatalf("table row not labelled: %+v", docs[1])
	}
	if docs[2].Text != "Fiber: Polyester; Loft: High" {
		t.Fatalf("empty cell not dropped: %+v", docs[2])
	}
	if docs[3].ID != "guide:4" || !strings.HasPrefix(docs[3].Text, "Wash cotton") {
		t.Fatalf("trailing paragraph lost: %+v", docs[3])
	}
}

func TestLoadGuide_MissingFile(t *testing.T) {
	if _, err := LoadGuide(filepath.Join(t.TempDir(), "nope.md")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadGuide_FromDisk(t *testing.T) {
	p := filepath.Join(t.TempDir(), "guide.md")
	if err := os.WriteFile(p, []byte(sampleGuide), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	docs, err := LoadGuide(p)
	if err != nil || len(docs) != 4 {
		t.Fatalf("LoadGuide = %d docs, %v", len(docs), err)
	}
}

func TestParseGuide_LineTooLong(t *testing.T) {
	huge := strings.Repeat("a", 4*1024*1024+10)
	if _, err := ParseGuide(strings.NewReader(huge)); err == nil {
		t.Fatalf("expected scanner error for overly long line")
	}
}
