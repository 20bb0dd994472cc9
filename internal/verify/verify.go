// Copyright PolyMD Authors, 2026. All rights reserved.

// Package verify checks extracted property records against their source
// articles using independent verifier models. Every record that enters
// verification receives exactly one verdict per verifier; a verifier
// failure becomes an error verdict, never a missing row.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apaudelx/PolyMD/internal/httputil"
	"github.com/apaudelx/PolyMD/pkg/types"
)

// Engine runs every configured verifier over a document's records.
type Engine struct {
	Verifiers []Verifier
	Units     map[types.Property]types.PropertyUnits
}

// NewEngine builds the engine from configuration. Verifiers share one
// HTTP client but each gets its own throttled endpoint.
func NewEngine(cfg types.VerificationConfig) *Engine {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	client := &http.Client{Timeout: timeout}

	verifiers := make([]Verifier, 0, len(cfg.Verifiers))
	for _, vc := range cfg.Verifiers {
		verifiers = append(verifiers, NewChatVerifier(vc, client, cfg.Retry))
	}
	return &Engine{Verifiers: verifiers, Units: cfg.Units}
}

// RecordVerdicts pairs one canonicalized record with its verdicts, one
// per verifier in engine order.
type RecordVerdicts struct {
	Record   types.PropertyRecord
	Verdicts []types.VerificationVerdict
}

// VerifyDocument reviews all of a document's records with each
// verifier. Records are first converted to canonical units, then one
// prompt carrying every record goes to each verifier. A failed verifier
// call yields error verdicts for all records of the document and the
// other verifiers still run, except for a rejected credential, which
// aborts verification.
func (e *Engine) VerifyDocument(ctx context.Context, docID types.DOI, document string, records []types.PropertyRecord, w io.Writer) ([]RecordVerdicts, error) {
	if len(records) == 0 {
		return nil, nil
	}

	canonical := make([]types.PropertyRecord, len(records))
	for i, rec := range records {
		conv, known := Normalize(e.Units, rec)
		if !known {
			fmt.Fprintf(w, "  %s record %d: unit %q not in conversion table, left as-is\n", docID, i, rec.Unit)
		}
		canonical[i] = conv
	}

	prompt, err := renderPrompt(document, canonical, e.Units)
	if err != nil {
		return nil, err
	}

	rows := make([]RecordVerdicts, len(canonical))
	for i, rec := range canonical {
		rows[i] = RecordVerdicts{Record: rec}
	}

	for _, v := range e.Verifiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var answers []answer
		reply, err := v.Review(ctx, prompt)
		if err != nil {
			// Error verdicts cover exhaustion and parse failures. A
			// rejected credential is fatal to the run.
			if httputil.IsAuth(err) {
				return nil, fmt.Errorf("verifier %s credential rejected: %w", v.ID(), err)
			}
			fmt.Fprintf(w, "  %s: verifier %s failed: %v\n", docID, v.ID(), err)
			answers = errorAnswers(len(canonical), fmt.Sprintf("verifier call failed: %v", err))
		} else {
			answers = parseVerdicts(reply, len(canonical))
		}

		for i, a := range answers {
			rows[i].Verdicts = append(rows[i].Verdicts, types.VerificationVerdict{
				DOI:         docID,
				RecordIndex: i,
				VerifierID:  v.ID(),
				Verdict:     a.verdict,
				Rationale:   a.rationale,
			})
		}
	}
	return rows, nil
}

type answer struct {
	verdict   types.Verdict
	rationale string
}

func errorAnswers(n int, reason string) []answer {
	out := make([]answer, n)
	for i := range out {
		out[i] = answer{verdict: types.VerdictError, rationale: reason}
	}
	return out
}

// replyEntry is one element of the verifier's entry-indexed reply.
type replyEntry struct {
	EntryIndex int    `json:"entry_index"`
	Answer     string `json:"answer"`
	Reasoning  string `json:"reasoning"`
}

// parseVerdicts matches reply entries back to records by entry index.
// An unparseable reply yields error answers for every record; a parsed
// reply that skips an index yields an error answer for that record
// only.
func parseVerdicts(reply string, n int) []answer {
	var entries []replyEntry
	if err := json.Unmarshal([]byte(stripFences(reply)), &entries); err != nil {
		return errorAnswers(n, fmt.Sprintf("failed to parse verifier response: %v", err))
	}

	byIndex := make(map[int]replyEntry)
	for _, e := range entries {
		if e.EntryIndex >= 0 && e.EntryIndex < n {
			byIndex[e.EntryIndex] = e
		}
	}

	out := make([]answer, n)
	for i := range out {
		e, ok := byIndex[i]
		if !ok {
			out[i] = answer{verdict: types.VerdictError, rationale: "missing response for this entry"}
			continue
		}
		out[i] = answer{verdict: types.ParseVerdict(e.Answer), rationale: e.Reasoning}
	}
	return out
}

func stripFences(reply string) string {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```json"))
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
