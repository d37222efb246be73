// Package cellfile reads notebook sources written as plain scripts split into
// cells by "// %%" marker lines. A marker may carry a title:
//
//	// %% setup
//	const nums = [1, 2, 3]
//
//	// %%
//	nums.map(n => n * 2)
//
// Code before the first marker forms an untitled cell when it is not blank.
package cellfile

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Marker starts a cell.
const Marker = "// %%"

var markerRe = regexp.MustCompile(`^\s*//\s*%%(.*)$`)

// Cell is one cell of a cell file.
type Cell struct {
	Title string `json:"title,omitempty"`
	Code  string `json:"code"`
}

// Parse splits src into cells. Blank lines around each cell's code are
// dropped; indentation is kept.
func Parse(src string) []Cell {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")

	var cells []Cell
	var cur *Cell
	var body []string
	flush := func() {
		code := trimBlankLines(body)
		if cur != nil {
			cur.Code = code
			cells = append(cells, *cur)
		} else if code != "" {
			cells = append(cells, Cell{Code: code})
		}
		body = nil
	}

	for _, line := range lines {
		if m := markerRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = &Cell{Title: strings.TrimSpace(m[1])}
			continue
		}
		body = append(body, line)
	}
	flush()
	return cells
}

// Format renders cells back to source. Parse(Format(cells)) returns cells
// whose code has no surrounding blank lines.
func Format(cells []Cell) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(Marker)
		if c.Title != "" {
			b.WriteString(" " + c.Title)
		}
		b.WriteString("\n")
		if c.Code != "" {
			b.WriteString(c.Code)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Load reads and parses a cell file.
func Load(path string) ([]Cell, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cell file: %w", err)
	}
	return Parse(string(data)), nil
}

func trimBlankLines(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	for i := start; i < end; i++ {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.Join(lines[start:end], "\n")
}
