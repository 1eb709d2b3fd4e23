package search

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadGuide reads a Markdown knowledge guide from path. See ParseGuide.
func LoadGuide(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseGuide(f)
}

// ParseGuide splits Markdown into documents:
//   - "#" headings title the documents that follow them
//   - blank-line separated paragraphs become one document each
//   - table rows become one document each, cells labelled by the header
//     row ("Fabric: cotton; Weight: light")
//
// Document ids are "guide:1", "guide:2", … in source order.
func ParseGuide(r io.Reader) ([]Document, error) {
	var (
		out     []Document
		section string
		para    []string
		header  []string
	)
	emit := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		out = append(out, Document{
			ID:    fmt.Sprintf("guide:%d", len(out)+1),
			Title: section,
			Text:  text,
		})
	}
	flush := func() {
		emit(strings.Join(para, " "))
		para = para[:0]
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		switch {
		case line == "":
			flush()
			header = nil

		case strings.HasPrefix(line, "#"):
			flush()
			header = nil
			section = strings.TrimSpace(strings.TrimLeft(line, "#"))

		case strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|"):
			flush()
			cells := splitRow(line)
			if len(cells) == 0 || isSeparatorRow(cells) {
				continue
			}
			if header == nil {
				header = cells
				continue
			}
			emit(labelRow(header, cells))

		default:
			para = append(para, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}

func splitRow(line string) []string {
	raw := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, 0, len(raw))
	for _, c := range raw {
		cells = append(cells, strings.TrimSpace(c))
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, ":- ") != "" {
			return false
		}
	}
	return true
}

func labelRow(header, cells []string) string {
	parts := make([]string, 0, len(cells))
	for i, c := range cells {
		if c == "" {
			continue
		}
		if i < len(header) && header[i] != "" {
			parts = append(parts, header[i]+": "+c)
		} else {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "; ")
}
