package review

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"docproc/internal/entity"
)

// Correction types.
const (
	correctionModified = "modified"
	correctionAdded    = "added"
	correctionRemoved  = "removed"
)

// DiffCorrections compares the original extraction payload against the
// reviewer's corrected payload and emits one Correction per changed leaf.
// Field names are dotted paths with bracketed array indices, matching the
// confidence-score key convention.
func DiffCorrections(itemID, documentID uuid.UUID, original, corrected json.RawMessage, at time.Time) ([]entity.Correction, error) {
	before, err := flattenJSON(original)
	if err != nil {
		return nil, fmt.Errorf("flatten original: %w", err)
	}
	after, err := flattenJSON(corrected)
	if err != nil {
		return nil, fmt.Errorf("flatten corrected: %w", err)
	}

	paths := make(map[string]struct{}, len(before)+len(after))
	for p := range before {
		paths[p] = struct{}{}
	}
	for p := range after {
		paths[p] = struct{}{}
	}
	ordered := make([]string, 0, len(paths))
	for p := range paths {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	var out []entity.Correction
	for _, p := range ordered {
		ov, hadOv := before[p]
		cv, hasCv := after[p]

		var c entity.Correction
		switch {
		case hadOv && hasCv && ov != cv:
			c = entity.Correction{FieldName: p, OriginalValue: &ov, CorrectedValue: &cv, CorrectionType: correctionModified}
		case !hadOv && hasCv:
			c = entity.Correction{FieldName: p, CorrectedValue: &cv, CorrectionType: correctionAdded}
		case hadOv && !hasCv:
			c = entity.Correction{FieldName: p, OriginalValue: &ov, CorrectionType: correctionRemoved}
		default:
			continue
		}
		c.ID = uuid.New()
		c.ReviewItemID = itemID
		c.DocumentID = documentID
		c.CreatedAt = at
		out = append(out, c)
	}
	return out, nil
}

// flattenJSON maps every non-null leaf to its stringified value. Nulls are
// treated as absent so null-vs-missing does not produce phantom diffs.
func flattenJSON(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	flattenInto(out, "", root)
	return out, nil
}

func flattenInto(out map[string]string, path string, v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			p := k
			if path != "" {
				p = path + "." + k
			}
			flattenInto(out, p, child)
		}
	case []any:
		for i, child := range t {
			flattenInto(out, fmt.Sprintf("%s[%d]", path, i), child)
		}
	case nil:
		// absent
	case string:
		out[path] = t
	case bool:
		out[path] = strconv.FormatBool(t)
	case float64:
		out[path] = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		out[path] = fmt.Sprintf("%v", t)
	}
}
