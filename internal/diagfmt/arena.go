package diagfmt

import (
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
)

const tabWidth = 4

// mark is one underline on a source line, in display columns (0-based, half-open).
type mark struct {
	start   int
	end     int
	primary bool
	label   string
}

// lineRecord is one source line of a snippet and the marks drawn under it.
type lineRecord struct {
	line  uint32
	text  string
	marks []mark
}

// lineArena stores the records of one file of a snippet, addressed by index.
// Spans never hold pointers into it, so several spans on one line extend the
// same record.
type lineArena struct {
	records []lineRecord
	byLine  map[uint32]int
}

func newLineArena() *lineArena {
	return &lineArena{byLine: make(map[uint32]int)}
}

// slot returns the index of the record for line, creating it on first use.
func (a *lineArena) slot(line uint32, text string) int {
	if idx, ok := a.byLine[line]; ok {
		return idx
	}
	a.records = append(a.records, lineRecord{line: line, text: expandTabs(text)})
	idx := len(a.records) - 1
	a.byLine[line] = idx
	return idx
}

func (a *lineArena) addMark(idx int, m mark) {
	a.records[idx].marks = append(a.records[idx].marks, m)
}

// ordered returns the records sorted by line number.
func (a *lineArena) ordered() []lineRecord {
	out := append([]lineRecord(nil), a.records...)
	sort.Slice(out, func(i, j int) bool { return out[i].line < out[j].line })
	return out
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

// displayCol converts a 1-based character column of raw line text into a
// 0-based display column.
func displayCol(raw string, col uint32) int {
	if col <= 1 {
		return 0
	}
	width := 0
	n := uint32(1)
	for _, r := range raw {
		if n >= col {
			break
		}
		if r == '\t' {
			width += tabWidth
		} else {
			width += runewidth.RuneWidth(r)
		}
		n++
	}
	// колонка за концом строки
	if n < col {
		width += int(col - n)
	}
	return width
}

// underlineRows draws the marks of a record: the underline row itself, then
// connector and label rows for every label that does not fit inline.
func underlineRows(rec lineRecord, primaryChar, secondaryChar rune) []string {
	if len(rec.marks) == 0 {
		return nil
	}
	marks := append([]mark(nil), rec.marks...)
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].start < marks[j].start })

	width := 0
	for _, m := range marks {
		if m.end > width {
			width = m.end
		}
	}
	row := []rune(strings.Repeat(" ", width))
	// сначала вторичные, чтобы основные перекрывали их
	for pass := 0; pass < 2; pass++ {
		for _, m := range marks {
			if m.primary != (pass == 1) {
				continue
			}
			ch := secondaryChar
			if m.primary {
				ch = primaryChar
			}
			for c := m.start; c < m.end; c++ {
				row[c] = ch
			}
		}
	}

	// самая правая метка печатается в той же строке
	var pending []mark
	inline := ""
	for i, m := range marks {
		if m.label == "" {
			continue
		}
		if i == len(marks)-1 && m.start >= maxEndBefore(marks[:i]) {
			inline = m.label
			continue
		}
		pending = append(pending, m)
	}

	rows := []string{strings.TrimRight(string(row), " ")}
	if inline != "" {
		rows[0] = strings.TrimRight(string(row), " ") + " " + inline
	}
	if len(pending) == 0 {
		return rows
	}

	rows = append(rows, connectorRow(pending, len(pending)))
	for i := len(pending) - 1; i >= 0; i-- {
		prefix := connectorRow(pending, i)
		pad := pending[i].start - len([]rune(prefix))
		if pad < 0 {
			pad = 0
		}
		rows = append(rows, prefix+strings.Repeat(" ", pad)+pending[i].label)
	}
	return rows
}

// connectorRow draws '|' under the first n pending marks.
func connectorRow(pending []mark, n int) string {
	if n == 0 {
		return ""
	}
	width := pending[n-1].start + 1
	row := []rune(strings.Repeat(" ", width))
	for _, m := range pending[:n] {
		row[m.start] = '|'
	}
	return strings.TrimRight(string(row), " ")
}

func maxEndBefore(marks []mark) int {
	end := 0
	for _, m := range marks {
		if m.end > end {
			end = m.end
		}
	}
	return end
}
