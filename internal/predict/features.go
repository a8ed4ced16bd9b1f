// Package predict adapts user-supplied complaint attributes to the feature
// layout the dissatisfaction classifier was trained on, and calls the scorer.
package predict

import (
	"strings"

	"ouvidoria/internal/schema"
	"ouvidoria/internal/transformer"
)

// SubjectText is the free-text feature column.
const SubjectText = "subject_text"

// NoSubject fills a missing subject. It differs from schema.Sentinel because
// the training pipeline used this literal for the text feature.
const NoSubject = "no subject"

// FeatureColumns is the scorer's input layout. Order matters.
var FeatureColumns = []string{
	schema.ManifestationType,
	schema.AgencyName,
	schema.Gender,
	schema.AgeBracket,
	schema.RaceColor,
	schema.ComplainantState,
	SubjectText,
}

// FeatureTable is a row-major table in FeatureColumns order.
type FeatureTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Adapt builds a single-row feature table. Inputs are keyed by canonical
// column name; the subject may be given as "subject" or "subject_text".
// Values go through the ETL text policy, so "SP " and "sp" score alike.
func Adapt(inputs map[string]string) FeatureTable {
	row := make([]string, len(FeatureColumns))
	for i, col := range FeatureColumns {
		if col == SubjectText {
			row[i] = subject(inputs)
			continue
		}
		v, ok := inputs[col]
		row[i] = transformer.Text(v, ok)
	}
	return FeatureTable{
		Columns: append([]string(nil), FeatureColumns...),
		Rows:    [][]string{row},
	}
}

func subject(inputs map[string]string) string {
	v, ok := inputs[SubjectText]
	if !ok || strings.TrimSpace(v) == "" {
		v, ok = inputs[schema.Subject]
	}
	if s := transformer.Text(v, ok); s != schema.Sentinel {
		return s
	}
	return NoSubject
}

// TrainingTarget maps a satisfaction code to the binary class used for
// training: 1 (dissatisfied) for codes 1-2, 0 for 4-5. Code 3 and anything
// outside 1..5 are excluded (ok is false).
func TrainingTarget(code int) (target int, ok bool) {
	switch {
	case code == 1 || code == 2:
		return 1, true
	case code == 4 || code == 5:
		return 0, true
	}
	return 0, false
}
