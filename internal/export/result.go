package export

import (
	"encoding/json"
	"os"

	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/orchestrator"
)

// Output is the stable JSON form of a finished conversion handed to downstream consumers.
type Output struct {
	Text       string             `json:"text"`
	Structure  document.Structure `json:"structure"`
	Language   string             `json:"language"`
	Confidence float64            `json:"confidence"`
	Engine     string             `json:"engineUsed"`
	Refiner    string             `json:"refinerUsed,omitempty"`
}

func NewOutput(res *orchestrator.Result) Output {
	return Output{
		Text:       res.Text,
		Structure:  res.Structure,
		Language:   res.Language,
		Confidence: res.Confidence,
		Engine:     string(res.Engine),
		Refiner:    string(res.Refiner),
	}
}

// ResultJSON renders res as indented JSON.
func ResultJSON(res *orchestrator.Result) ([]byte, error) {
	return json.MarshalIndent(NewOutput(res), "", "  ")
}

// HasTables reports whether s contains at least one table element.
func HasTables(s document.Structure) bool {
	for _, el := range s.Elements {
		if el.Type == document.KindTable && el.Table != nil {
			return true
		}
	}
	return false
}

// WriteResult writes base.json and, when the page has tables, base.xlsx.
func WriteResult(base string, res *orchestrator.Result) error {
	data, err := ResultJSON(res)
	if err != nil {
		return common.WrapError(err, "encode result")
	}
	if err := os.WriteFile(base+".json", data, 0o644); err != nil {
		return err
	}
	if !HasTables(res.Structure) {
		return nil
	}
	xlsx, err := TablesToXLSX(res.Structure)
	if err != nil {
		return err
	}
	return os.WriteFile(base+".xlsx", xlsx, 0o644)
}
