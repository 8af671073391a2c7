package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

var kindSynonyms = map[string]string{
	"title":     "heading",
	"header":    "heading",
	"subtitle":  "heading",
	"text":      "paragraph",
	"para":      "paragraph",
	"line":      "paragraph",
	"list_item": "list",
	"bullets":   "list",
	"ul":        "list",
	"ol":        "list",
	"figure":    "image",
	"picture":   "image",
	"equation":  "formula",
	"math":      "formula",
}

var knownKinds = map[string]struct{}{
	"heading": {}, "paragraph": {}, "table": {}, "list": {}, "image": {}, "formula": {},
}

// SanitizeStructureJSON repairs the usual ways a model answer drifts from the structure shape:
// - renames element type synonyms (title -> heading) and demotes unknown types to paragraph
// - coerces numeric strings in geometry and numeric content to their target types
// - fills a missing elements list or metadata object
// - drops metadata values that normalization recomputes anyway
// It returns the repaired JSON and a list of what was changed.
func SanitizeStructureJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	changed := make([]string, 0, 8)

	elems, ok := m["elements"].([]any)
	if !ok {
		if _, present := m["elements"]; present {
			changed = append(changed, "elements(type)")
		}
		elems = []any{}
	}
	out := make([]any, 0, len(elems))
	for i, e := range elems {
		el, ok := e.(map[string]any)
		if !ok {
			changed = append(changed, fmt.Sprintf("elements[%d](dropped)", i))
			continue
		}
		sanitizeElement(el, i, &changed)
		out = append(out, el)
	}
	m["elements"] = out

	meta, ok := m["metadata"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		changed = append(changed, "metadata(missing)")
	}
	if v, present := meta["pageCount"]; present {
		if n, ok := toNumber(v); ok && n >= 1 {
			meta["pageCount"] = math.Round(n)
		} else {
			delete(meta, "pageCount")
			changed = append(changed, "metadata.pageCount")
		}
	}
	if v, ok := meta["orientation"].(string); ok && v != "portrait" && v != "landscape" {
		delete(meta, "orientation")
		changed = append(changed, "metadata.orientation")
	}
	if d, ok := meta["dimensions"].(map[string]any); ok {
		coerceNumbers(d, "metadata.dimensions", []string{"width", "height"}, &changed)
	}
	m["metadata"] = meta

	b, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.refine.sanitize", "changed", changed)
	}
	return b, changed, nil
}

func sanitizeElement(el map[string]any, i int, changed *[]string) {
	prefix := fmt.Sprintf("elements[%d]", i)

	kind, _ := el["type"].(string)
	kind = strings.ToLower(strings.TrimSpace(kind))
	if syn, ok := kindSynonyms[kind]; ok {
		*changed = append(*changed, prefix+".type->"+syn)
		kind = syn
	} else if _, ok := knownKinds[kind]; !ok {
		*changed = append(*changed, prefix+".type(unknown)")
		kind = "paragraph"
	}
	el["type"] = kind

	switch v := el["content"].(type) {
	case string:
	case float64:
		el["content"] = strconv.FormatFloat(v, 'f', -1, 64)
		*changed = append(*changed, prefix+".content(number)")
	case nil:
		el["content"] = ""
		*changed = append(*changed, prefix+".content(missing)")
	default:
		el["content"] = fmt.Sprint(v)
		*changed = append(*changed, prefix+".content(type)")
	}

	if pos, ok := el["position"].(map[string]any); ok {
		for _, k := range []string{"x", "y", "width", "height"} {
			if _, present := pos[k]; !present {
				pos[k] = 0.0
				*changed = append(*changed, prefix+".position."+k+"(missing)")
			}
		}
		coerceNumbers(pos, prefix+".position", []string{"x", "y", "width", "height"}, changed)
	} else if _, present := el["position"]; present {
		delete(el, "position")
		*changed = append(*changed, prefix+".position(type)")
	}

	if _, present := el["style"]; present {
		if _, ok := el["style"].(map[string]any); !ok {
			delete(el, "style")
			*changed = append(*changed, prefix+".style(type)")
		}
	}

	if v, present := el["level"]; present {
		if n, ok := toNumber(v); ok && n >= 0 {
			el["level"] = math.Round(n)
		} else {
			delete(el, "level")
			*changed = append(*changed, prefix+".level")
		}
	}
}

func coerceNumbers(m map[string]any, prefix string, keys []string, changed *[]string) {
	for _, k := range keys {
		v, present := m[k]
		if !present {
			continue
		}
		if _, ok := v.(float64); ok {
			continue
		}
		if n, ok := toNumber(v); ok {
			m[k] = n
			*changed = append(*changed, prefix+"."+k+"(coerced)")
		} else {
			m[k] = 0.0
			*changed = append(*changed, prefix+"."+k+"(zeroed)")
		}
	}
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "px")), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
