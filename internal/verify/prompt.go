// Copyright PolyMD Authors, 2026. All rights reserved.

package verify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/apaudelx/PolyMD/pkg/types"
)

// verificationPromptTmpl reviews every extracted entry of one document
// in a single call. The reply must be an entry-indexed JSON array so
// answers can be matched back to records even when the model reorders
// or drops entries.
var verificationPromptTmpl = template.Must(template.New("verification").Parse(`You are a scientific reviewer verifying extracted data from a polymer research article. Your job is to identify actual errors in the extracted information, not to find problems where none exist.

Here is the full text of the research article:

{{.Document}}

The following information has been extracted from this article and claims to represent simulation data (as a JSON array):

{{.Entries}}

**Standard Units (extracted values are ALREADY in these units):**
{{.UnitLines}}

**CRITICAL: Understanding Extracted Values**
The extracted values in the JSON array are ALREADY converted to the standard units listed above. This is CORRECT and EXPECTED behavior.

**CRITICAL: Unit Conversion Rules**
When checking if values match, convert the article's value to the standard unit and compare:
{{.ConversionLines}}

**What to Check:**
For each entry, verify:
1. Whether the property was ACTUALLY studied for the specified polymer using the specified force field in this article
2. Whether the extracted numerical value matches the article value AFTER converting the article's value to the standard unit

**Flag as "NO" ONLY if:**
- The polymer name is wrong or doesn't match
- The force field name is wrong or doesn't match (e.g., "OPLS-AA" vs "OPLS-UA" - they are different)
- The property was NOT studied for this polymer-force field combination
- The numerical value doesn't match even after proper unit conversion
- The value is from an experiment, not a simulation

**DO NOT flag as "NO" if:**
- The extracted value matches the article value after unit conversion (e.g., article says 730 kg/m³, extracted is 0.73 g/cm³ - this is CORRECT)
- The article discusses experimental comparisons or deviations (this doesn't make the simulation value wrong)
- The article mentions other values or conditions (as long as the extracted value is correct for the specified polymer-force field)

**Response Format:**
Return a JSON array with the same length as the input array. Each object must have:
- "entry_index": the index (0-based) of the entry in the input array
- "answer": "YES" or "NO"
- "reasoning": detailed explanation (include unit conversions you performed)

Example format:
[
  {"entry_index": 0, "answer": "YES", "reasoning": "Verified correct. Article reports 730 kg/m³, which converts to 0.73 g/cm³, matching the extracted value."},
  {"entry_index": 1, "answer": "NO", "reasoning": "Force field name doesn't match. Article uses 'OPLS-AA' but extracted value is 'OPLS-UA'."}
]

Return ONLY valid JSON. Do not include any markdown formatting or explanations outside the JSON.`))

// promptEntry is one extracted record as presented to the verifier.
type promptEntry struct {
	EntryIndex    int     `json:"entry_index"`
	PolymerSystem string  `json:"polymer_system"`
	ForceField    string  `json:"force_field"`
	Property      string  `json:"property"`
	Value         float64 `json:"value"`
	Unit          string  `json:"unit"`
}

func renderPrompt(document string, records []types.PropertyRecord, units map[types.Property]types.PropertyUnits) (string, error) {
	entries := make([]promptEntry, len(records))
	for i, r := range records {
		entries[i] = promptEntry{
			EntryIndex:    i,
			PolymerSystem: r.PolymerSystem,
			ForceField:    r.ForceField,
			Property:      string(r.Property),
			Value:         r.Value,
			Unit:          r.Unit,
		}
	}
	entriesJSON, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling entries: %w", err)
	}

	var buf bytes.Buffer
	err = verificationPromptTmpl.Execute(&buf, struct {
		Document        string
		Entries         string
		UnitLines       string
		ConversionLines string
	}{
		Document:        document,
		Entries:         string(entriesJSON),
		UnitLines:       unitLines(units),
		ConversionLines: conversionLines(units),
	})
	if err != nil {
		return "", fmt.Errorf("rendering verification prompt: %w", err)
	}
	return buf.String(), nil
}

// unitLines lists each property's canonical unit, in the fixed
// property display order so prompts are byte-stable across runs.
func unitLines(units map[types.Property]types.PropertyUnits) string {
	var lines []string
	for _, prop := range types.AllProperties {
		pu, ok := units[prop]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", prop, pu.Canonical))
	}
	return strings.Join(lines, "\n")
}

func conversionLines(units map[types.Property]types.PropertyUnits) string {
	var lines []string
	for _, prop := range types.AllProperties {
		pu, ok := units[prop]
		if !ok {
			continue
		}
		for _, conv := range pu.Conversions {
			rule := fmt.Sprintf("multiply by %s", formatFloat(conv.Factor))
			if conv.Offset != 0 {
				rule += fmt.Sprintf(", then add %s", formatFloat(conv.Offset))
			}
			lines = append(lines, fmt.Sprintf("- If the article reports %s in %s, convert to %s (%s)",
				prop, conv.Source, pu.Canonical, rule))
		}
	}
	return strings.Join(lines, "\n")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
