package layout

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/manekies/document-converter-app/internal/document"
)

// Line is one recognized text line with its bounding box (x0,y0 top-left, x1,y1 bottom-right).
type Line struct {
	Text string
	X0   float64
	Y0   float64
	X1   float64
	Y1   float64
}

func (l Line) Position() document.Position {
	return document.Position{X: l.X0, Y: l.Y0, Width: max(l.X1-l.X0, 0), Height: max(l.Y1-l.Y0, 0)}
}

// Options are the layout heuristics. Zero fields take the defaults.
type Options struct {
	// ColumnSlack is added to the median left edge before partitioning lines into columns.
	ColumnSlack float64
	// MinGutter is the smallest horizontal gap between two columns.
	MinGutter float64
	// HeadingMaxLen bounds heading length in characters (exclusive).
	HeadingMaxLen int
	// HeadingShortLen is the length under which a heading gets level 2.
	HeadingShortLen int
	// HeadingCapsRatio is the uppercase share of letters above which a short line is a heading.
	HeadingCapsRatio float64
	// TableMinCells is the number of gap-separated cells that makes a line a table row.
	TableMinCells int
	// TableCellTolerance is how much the cell count may change between consecutive rows.
	TableCellTolerance int
}

func DefaultOptions() Options {
	return Options{
		ColumnSlack:        20,
		MinGutter:          40,
		HeadingMaxLen:      60,
		HeadingShortLen:    30,
		HeadingCapsRatio:   0.6,
		TableMinCells:      3,
		TableCellTolerance: 2,
	}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.ColumnSlack == 0 {
		o.ColumnSlack = d.ColumnSlack
	}
	if o.MinGutter == 0 {
		o.MinGutter = d.MinGutter
	}
	if o.HeadingMaxLen == 0 {
		o.HeadingMaxLen = d.HeadingMaxLen
	}
	if o.HeadingShortLen == 0 {
		o.HeadingShortLen = d.HeadingShortLen
	}
	if o.HeadingCapsRatio == 0 {
		o.HeadingCapsRatio = d.HeadingCapsRatio
	}
	if o.TableMinCells == 0 {
		o.TableMinCells = d.TableMinCells
	}
	if o.TableCellTolerance == 0 {
		o.TableCellTolerance = d.TableCellTolerance
	}
	return o
}

var (
	reGaps     = regexp.MustCompile(`\s{2,}|\t+`)
	reBullet   = regexp.MustCompile(`^[•\-*]\s+`)
	reNumbered = regexp.MustCompile(`^\d+[.)]\s+`)
	reSection  = regexp.MustCompile(`^\d+(\.\d+)*\s+`)
)

// SplitColumns partitions lines into one or two columns around the median left edge.
// Input order is kept inside each column.
func (o Options) SplitColumns(lines []Line) [][]Line {
	if len(lines) < 2 {
		return [][]Line{lines}
	}
	xs := make([]float64, len(lines))
	for i, l := range lines {
		xs[i] = l.X0
	}
	sort.Float64s(xs)
	cut := xs[len(xs)/2] + o.ColumnSlack

	var left, right []Line
	for _, l := range lines {
		if l.X0 <= cut {
			left = append(left, l)
		} else {
			right = append(right, l)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return [][]Line{lines}
	}

	leftMax := left[0].X1
	for _, l := range left[1:] {
		leftMax = max(leftMax, l.X1)
	}
	rightMin := right[0].X0
	for _, l := range right[1:] {
		rightMin = min(rightMin, l.X0)
	}
	if rightMin-leftMax < o.MinGutter {
		return [][]Line{lines}
	}
	return [][]Line{left, right}
}

// SplitByGaps splits text into cells on runs of two or more whitespace characters or tabs.
func SplitByGaps(s string) []string {
	parts := reGaps.Split(s, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsListItem reports whether s starts with a bullet (•, -, *) or a numbered marker (N. or N)).
func IsListItem(s string) bool {
	return reBullet.MatchString(s) || reNumbered.MatchString(s)
}

// IsHeading reports whether s is short and either mostly uppercase or ends with a colon.
func (o Options) IsHeading(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" || utf8.RuneCountInString(t) >= o.HeadingMaxLen {
		return false
	}
	return capsRatio(t) > o.HeadingCapsRatio || hasTrailingColon(t)
}

// HeadingLevel is 2 for numbered sections and short headings, 3 otherwise.
func (o Options) HeadingLevel(s string) int {
	if reSection.MatchString(s) || utf8.RuneCountInString(s) < o.HeadingShortLen {
		return 2
	}
	return 3
}

// HeadingText strips one trailing colon (ASCII or full-width).
func HeadingText(s string) string {
	s = strings.TrimSpace(s)
	if hasTrailingColon(s) {
		_, size := utf8.DecodeLastRuneInString(s)
		return s[:len(s)-size]
	}
	return s
}

func hasTrailingColon(s string) bool {
	return strings.HasSuffix(s, ":") || strings.HasSuffix(s, "：")
}

func capsRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// tableBlock is an inclusive index range of table rows inside a column.
type tableBlock struct {
	start, end int
}

// detectTableBlocks scans greedily top to bottom; a block needs at least two rows.
func (o Options) detectTableBlocks(col []Line) []tableBlock {
	var blocks []tableBlock
	i := 0
	for i < len(col) {
		n := len(SplitByGaps(col[i].Text))
		if n < o.TableMinCells {
			i++
			continue
		}
		start, end, prev := i, i, n
		i++
		for i < len(col) {
			m := len(SplitByGaps(col[i].Text))
			if m < o.TableMinCells || abs(m-prev) > o.TableCellTolerance {
				break
			}
			end, prev = i, m
			i++
		}
		if end > start {
			blocks = append(blocks, tableBlock{start: start, end: end})
		}
	}
	return blocks
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func span(lines []Line) document.Position {
	p := lines[0].Position()
	for _, l := range lines[1:] {
		p = p.Union(l.Position())
	}
	return p
}
