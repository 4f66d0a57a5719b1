package httpapi

import (
	"encoding/json"
	"io"
)

// fieldSample is one valid/invalid example IFTTT's endpoint tester
// submits to the corresponding /validate route.
type fieldSample struct {
	Field   string   `json:"field"`
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

// fieldSamplesBySlugField lists the worked examples for every validated
// field (spec.md §8's threshold_amount boundary cases, plus the other
// validated fields named in §4.5/§4.7).
var fieldSamplesBySlugField = map[string]fieldSample{
	"category_balance_threshold.threshold_percent": {
		Field: "threshold_percent", Valid: []string{"1", "50", "100"}, Invalid: []string{"0", "101", "abc"},
	},
	"category_balance_threshold.streak_months": {
		Field: "streak_months", Valid: []string{"2", "6"}, Invalid: []string{"1", "0", "abc"},
	},
	"category_balance_threshold.threshold_amount": {
		Field: "threshold_amount", Valid: []string{"1", "250", ""}, Invalid: []string{"0", "-1", "abc"},
	},
}

// testSetupBody is the fixed payload IFTTT's endpoint tester checks
// against (spec.md §4.4's "test/setup"): every trigger/action/query
// slug plus the validated-field example table.
type testSetupBody struct {
	AccessToken string        `json:"accessToken"`
	Triggers    []string      `json:"triggers"`
	Actions     []string      `json:"actions"`
	Queries     []string      `json:"queries"`
	Samples     []fieldSample `json:"fieldSamples"`
}

func buildTestSetupBody(token string) testSetupBody {
	body := testSetupBody{AccessToken: token}
	for slug := range triggerDefs {
		body.Triggers = append(body.Triggers, slug)
	}
	for slug := range actionDefs {
		body.Actions = append(body.Actions, slug)
	}
	for slug := range queryDefs {
		body.Queries = append(body.Queries, slug)
	}
	for _, sample := range fieldSamplesBySlugField {
		body.Samples = append(body.Samples, sample)
	}
	return body
}

func writeTestSetupBody(w io.Writer, token string) error {
	return json.NewEncoder(w).Encode(buildTestSetupBody(token))
}
