package document

import (
	"reflect"
	"testing"
)

func sampleStructure() Structure {
	return Structure{
		Elements: []Element{
			{Type: KindHeading, Content: "SUMMARY", Level: 2, Position: Position{X: 10, Y: 10, Width: 80, Height: 20},
				Style: Style{FontWeight: "bold", FontSize: 18, TextAlign: "left"}},
			{Type: KindParagraph, Content: "Body text.", Position: Position{X: 10, Y: 40, Width: 300, Height: 14},
				Style: Style{FontSize: 12, TextAlign: "left"}},
			{Type: KindList, Content: "• a\n• b", Position: Position{X: 10, Y: 60, Width: 50, Height: 30}},
			{Type: KindTable, Position: Position{X: 10, Y: 100, Width: 200, Height: 40},
				Table: &Table{Rows: [][]Cell{{{Text: "a"}, {Text: "b"}, {Text: "c"}}, {{Text: "1"}, {Text: "2"}, {Text: "3"}}}}},
			{Type: KindParagraph, Content: "ACME", Field: "vendor", Position: Position{X: 5, Y: 5, Width: 100, Height: 20}},
		},
		Metadata: Metadata{PageCount: 1, Orientation: Portrait, Dimensions: Dimensions{Width: 595, Height: 842}, Template: "custom"},
	}
}

func TestRoundTrip(t *testing.T) {
	in := sampleStructure()
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch\nin:  %+v\nout: %+v", in, out)
	}
}

func TestRoundTripEmptyElements(t *testing.T) {
	in := Structure{Elements: []Element{}, Metadata: NewMetadata(800, 600)}
	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown kind":     `{"elements":[{"type":"banner","content":"x"}],"metadata":{}}`,
		"missing metadata": `{"elements":[]}`,
		"not an object":    `[1,2,3]`,
		"bad json":         `{"elements":`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(body)); err == nil {
				t.Errorf("expected error for %s", body)
			}
		})
	}
}

func TestParseNormalizes(t *testing.T) {
	body := `{"elements":[{"type":"paragraph","content":"x","position":{"x":-4,"y":2,"width":-1,"height":3}}],
		"metadata":{"pageCount":0,"orientation":"portrait","dimensions":{"width":900,"height":600}}}`
	s, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p := s.Elements[0].Position; p.X != 0 || p.Width != 0 || p.Y != 2 {
		t.Errorf("position not clamped: %+v", p)
	}
	if s.Metadata.Orientation != Landscape || s.Metadata.PageCount != 1 {
		t.Errorf("metadata not normalized: %+v", s.Metadata)
	}
}

func TestUnionAndOrientation(t *testing.T) {
	a := Position{X: 10, Y: 10, Width: 20, Height: 10}
	b := Position{X: 5, Y: 30, Width: 40, Height: 10}
	if got, want := a.Union(b), (Position{X: 5, Y: 10, Width: 40, Height: 30}); got != want {
		t.Errorf("Union = %+v, want %+v", got, want)
	}
	if OrientationFor(100, 100) != Portrait || OrientationFor(200, 100) != Landscape {
		t.Error("orientation rule broken")
	}
}
