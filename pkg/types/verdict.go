// Copyright PolyMD Authors, 2026. All rights reserved.

package types

import "strings"

// Verdict is a verifier's judgment on one extracted property record.
type Verdict string

const (
	VerdictYes   Verdict = "yes"
	VerdictNo    Verdict = "no"
	VerdictError Verdict = "error"
)

// ParseVerdict maps a model answer string to a Verdict. Anything other
// than yes/no is an error verdict; verifier replies are never allowed
// to introduce a fourth label.
func ParseVerdict(answer string) Verdict {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes":
		return VerdictYes
	case "no":
		return VerdictNo
	default:
		return VerdictError
	}
}

// Upper returns the verdict in the uppercase form used in tabular output.
func (v Verdict) Upper() string { return strings.ToUpper(string(v)) }

// VerificationVerdict is one verifier's answer for one property record.
// Every record that enters verification receives exactly one verdict
// per configured verifier; a verifier failure yields an error verdict,
// never a missing row. The verdict references the record it evaluated
// and does not mutate it.
type VerificationVerdict struct {
	// DOI and RecordIndex identify the evaluated PropertyRecord within
	// its document's extraction result.
	DOI         DOI `json:"doi" yaml:"doi"`
	RecordIndex int `json:"record_index" yaml:"record_index"`

	// VerifierID identifies the verifier model that produced the verdict.
	VerifierID string `json:"verifier_id" yaml:"verifier_id"`

	Verdict Verdict `json:"verdict" yaml:"verdict"`

	// Rationale is the verifier's free-text reasoning, or the failure
	// reason when Verdict is error.
	Rationale string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}
