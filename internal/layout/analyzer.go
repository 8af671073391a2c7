// Package layout turns recognized line geometry into a DocumentStructure.
package layout

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/manekies/document-converter-app/internal/document"
)

// Default page size (A4 at 72 dpi) used when the engine reports no dimensions.
const (
	DefaultPageWidth  = 595
	DefaultPageHeight = 842
)

// Page is the raw output of a geometry-rich recognition pass.
type Page struct {
	Lines           []Line
	WordConfidences []float64
	Width           float64
	Height          float64
}

// Analyzer runs general and region (template) layout analysis.
type Analyzer struct {
	opts   Options
	logger *slog.Logger
}

func NewAnalyzer(opts Options, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{opts: opts.WithDefaults(), logger: logger}
}

func (a *Analyzer) Options() Options { return a.opts }

// Analyze builds the structure of a page in general mode and returns it with the mean word confidence.
func (a *Analyzer) Analyze(p Page) (document.Structure, float64) {
	width, height := p.Width, p.Height
	if width <= 0 || height <= 0 {
		width, height = DefaultPageWidth, DefaultPageHeight
	}

	lines := make([]Line, 0, len(p.Lines))
	for _, l := range p.Lines {
		l.Text = strings.TrimSpace(l.Text)
		if l.Text == "" {
			continue
		}
		lines = append(lines, l)
	}

	var elements []document.Element
	for _, col := range a.opts.SplitColumns(lines) {
		col = append([]Line(nil), col...)
		sort.SliceStable(col, func(i, j int) bool { return col[i].Y0 < col[j].Y0 })
		elements = append(elements, a.columnElements(col)...)
	}

	structure := document.Structure{
		Elements: MergeLists(elements),
		Metadata: document.NewMetadata(width, height),
	}
	return structure, MeanConfidence(p.WordConfidences)
}

// columnElements classifies the lines of one column, already in top-to-bottom order.
func (a *Analyzer) columnElements(col []Line) []document.Element {
	blocks := a.opts.detectTableBlocks(col)

	var out []document.Element
	for i := 0; i < len(col); {
		if b, ok := blockContaining(blocks, i); ok {
			// rows before i were already consumed by a list run
			out = append(out, tableElement(col[i:b.end+1]))
			i = b.end + 1
			continue
		}

		l := col[i]
		if IsListItem(l.Text) {
			end := i
			for end+1 < len(col) && IsListItem(col[end+1].Text) {
				end++
			}
			items := make([]string, 0, end-i+1)
			for _, x := range col[i : end+1] {
				items = append(items, x.Text)
			}
			out = append(out, document.Element{
				Type:     document.KindList,
				Content:  strings.Join(items, "\n"),
				Position: span(col[i : end+1]),
			})
			i = end + 1
			continue
		}

		if a.opts.IsHeading(l.Text) {
			out = append(out, document.Element{
				Type:     document.KindHeading,
				Content:  HeadingText(l.Text),
				Level:    a.opts.HeadingLevel(l.Text),
				Position: l.Position(),
				Style:    document.Style{FontWeight: "bold", FontSize: 18, TextAlign: "left"},
			})
			i++
			continue
		}

		out = append(out, ParagraphElement(l))
		i++
	}
	return out
}

// ParagraphElement is the fallback classification of a line.
func ParagraphElement(l Line) document.Element {
	return document.Element{
		Type:     document.KindParagraph,
		Content:  l.Text,
		Position: l.Position(),
		Style:    document.Style{FontSize: 12, TextAlign: "left"},
	}
}

func blockContaining(blocks []tableBlock, i int) (tableBlock, bool) {
	for _, b := range blocks {
		if b.start <= i && i <= b.end {
			return b, true
		}
	}
	return tableBlock{}, false
}

func tableElement(rows []Line) document.Element {
	table := &document.Table{Rows: make([][]document.Cell, 0, len(rows))}
	for _, r := range rows {
		cells := SplitByGaps(r.Text)
		row := make([]document.Cell, 0, len(cells))
		for _, c := range cells {
			row = append(row, document.Cell{Text: c})
		}
		table.Rows = append(table.Rows, row)
	}
	return document.Element{
		Type:     document.KindTable,
		Position: span(rows),
		Table:    table,
	}
}

// MergeLists folds runs of adjacent list elements into one, joining content with newlines
// and uniting bounding boxes.
func MergeLists(elements []document.Element) []document.Element {
	out := make([]document.Element, 0, len(elements))
	for _, el := range elements {
		if n := len(out); n > 0 && el.Type == document.KindList && out[n-1].Type == document.KindList {
			prev := &out[n-1]
			prev.Content = prev.Content + "\n" + el.Content
			prev.Position = prev.Position.Union(el.Position)
			continue
		}
		out = append(out, el)
	}
	return out
}

// MeanConfidence is the arithmetic mean, 0 for no samples.
func MeanConfidence(confs []float64) float64 {
	if len(confs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range confs {
		sum += c
	}
	return sum / float64(len(confs))
}
