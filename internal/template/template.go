package template

import (
	"fmt"
	"strings"
	"time"

	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
)

// Template is a recurring page layout identified by its perceptual-hash fingerprint.
type Template struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Fingerprint string            `json:"matchFingerprint"`
	Regions     []document.Region `json:"regions"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Fingerprint is the (id, hash) pair the matcher scans.
type Fingerprint struct {
	TemplateID string
	Hash       string
}

// Validate checks the fields a stored template must carry.
func Validate(t Template) error {
	v := common.NewValidator()
	v.Field("name", t.Name, common.Required, common.MaxLen(200))
	v.Field("matchFingerprint", t.Fingerprint, common.Required, binaryDigits)
	v.Field("regions", len(t.Regions), common.NotEmpty)

	seen := make(map[string]struct{}, len(t.Regions))
	for i, r := range t.Regions {
		prefix := fmt.Sprintf("regions[%d]", i)
		v.Field(prefix+".name", r.Name, common.Required)
		v.Field(prefix+".x", r.X, common.NonNegative)
		v.Field(prefix+".y", r.Y, common.NonNegative)
		v.Field(prefix+".width", r.Width, common.Positive)
		v.Field(prefix+".height", r.Height, common.Positive)
		name := strings.TrimSpace(r.Name)
		if _, dup := seen[name]; dup && name != "" {
			v.Fail(prefix+".name", r.Name, "is duplicated")
		}
		seen[name] = struct{}{}
	}
	return v.Error()
}

func binaryDigits(value any) string {
	if s, _ := value.(string); strings.Trim(s, "01") != "" {
		return "must be a binary digit string"
	}
	return ""
}
