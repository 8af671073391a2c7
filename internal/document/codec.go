package document

import (
	"encoding/json"
	"fmt"
)

// Marshal renders s in its stable JSON shape.
func Marshal(s Structure) ([]byte, error) {
	if s.Elements == nil {
		s.Elements = []Element{}
	}
	return json.Marshal(s)
}

// Parse decodes and schema-checks a DocumentStructure, then normalizes geometry and metadata.
func Parse(data []byte) (Structure, error) {
	if err := Validate(data); err != nil {
		return Structure{}, err
	}
	var s Structure
	if err := json.Unmarshal(data, &s); err != nil {
		return Structure{}, fmt.Errorf("decode structure: %w", err)
	}
	s.Normalize()
	return s, nil
}

// Normalize enforces the geometry and metadata invariants in place.
func (s *Structure) Normalize() {
	if s.Elements == nil {
		s.Elements = []Element{}
	}
	for i := range s.Elements {
		s.Elements[i].Position = s.Elements[i].Position.Clamped()
	}
	d := s.Metadata.Dimensions
	if d.Width < 0 {
		d.Width = 0
	}
	if d.Height < 0 {
		d.Height = 0
	}
	s.Metadata.Dimensions = d
	s.Metadata.Orientation = OrientationFor(d.Width, d.Height)
	if s.Metadata.PageCount <= 0 {
		s.Metadata.PageCount = 1
	}
}
