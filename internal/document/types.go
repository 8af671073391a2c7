// Package document defines the page structure produced by recognition and refinement.
package document

// Kind tags a DocumentElement variant.
type Kind string

const (
	KindHeading   Kind = "heading"
	KindParagraph Kind = "paragraph"
	KindList      Kind = "list"
	KindTable     Kind = "table"
	KindImage     Kind = "image"
	KindFormula   Kind = "formula"
)

// Orientation of a page.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Position is a rectangle in page pixel space.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Style carries font and alignment hints.
type Style struct {
	FontFamily      string  `json:"fontFamily,omitempty"`
	FontSize        float64 `json:"fontSize,omitempty"`
	FontWeight      string  `json:"fontWeight,omitempty"`
	FontStyle       string  `json:"fontStyle,omitempty"`
	TextAlign       string  `json:"textAlign,omitempty"`
	Color           string  `json:"color,omitempty"`
	BackgroundColor string  `json:"backgroundColor,omitempty"`
	TextDecoration  string  `json:"textDecoration,omitempty"`
	LineHeight      float64 `json:"lineHeight,omitempty"`
}

type Cell struct {
	Text    string `json:"text"`
	ColSpan int    `json:"colSpan,omitempty"`
	RowSpan int    `json:"rowSpan,omitempty"`
	Style   *Style `json:"style,omitempty"`
}

type Table struct {
	Rows         [][]Cell  `json:"rows"`
	ColumnWidths []float64 `json:"columnWidths,omitempty"`
}

// Element is one block of the page in reading order.
// Content is plain text, or the caption for image and table elements.
type Element struct {
	Type     Kind     `json:"type"`
	Content  string   `json:"content"`
	Position Position `json:"position"`
	Style    Style    `json:"style"`
	Level    int      `json:"level,omitempty"`
	// Field names the template region the element was recognized from.
	Field       string `json:"field,omitempty"`
	ImageSrc    string `json:"imageSrc,omitempty"`
	ImageWidth  int    `json:"imageWidth,omitempty"`
	ImageHeight int    `json:"imageHeight,omitempty"`
	Table       *Table `json:"table,omitempty"`
}

type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Metadata struct {
	PageCount   int         `json:"pageCount"`
	Orientation Orientation `json:"orientation"`
	Dimensions  Dimensions  `json:"dimensions"`
	Template    string      `json:"template,omitempty"`
	FontFamily  string      `json:"fontFamily,omitempty"`
}

// Structure is the DocumentStructure: ordered elements plus page metadata.
type Structure struct {
	Elements []Element `json:"elements"`
	Metadata Metadata  `json:"metadata"`
}

// RecognitionResult is produced fresh by every recognition call.
type RecognitionResult struct {
	Text       string    `json:"text"`
	Structure  Structure `json:"structure"`
	Language   string    `json:"language"`
	Confidence float64   `json:"confidence"`
}

// OrientationFor returns portrait iff height >= width.
func OrientationFor(width, height float64) Orientation {
	if height >= width {
		return Portrait
	}
	return Landscape
}

// NewMetadata describes a single page of the given pixel size.
func NewMetadata(width, height float64) Metadata {
	return Metadata{
		PageCount:   1,
		Orientation: OrientationFor(width, height),
		Dimensions:  Dimensions{Width: width, Height: height},
	}
}

// Union returns the smallest rectangle covering p and o.
func (p Position) Union(o Position) Position {
	x0 := min(p.X, o.X)
	y0 := min(p.Y, o.Y)
	x1 := max(p.X+p.Width, o.X+o.Width)
	y1 := max(p.Y+p.Height, o.Y+o.Height)
	return Position{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Clamped returns p with negative components raised to zero.
func (p Position) Clamped() Position {
	return Position{X: max(p.X, 0), Y: max(p.Y, 0), Width: max(p.Width, 0), Height: max(p.Height, 0)}
}

// Region is a named rectangle (ROI) in page pixel space targeted for scoped recognition.
type Region struct {
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Position converts r to element geometry.
func (r Region) Position() Position {
	return Position{X: float64(r.X), Y: float64(r.Y), Width: float64(r.Width), Height: float64(r.Height)}
}
