// Copyright PolyMD Authors, 2026. All rights reserved.

package extract

import (
	"bytes"
	"text/template"

	"github.com/apaudelx/PolyMD/pkg/types"
)

// extractionPromptTmpl is the prompt sent to the language model for one
// document. It states the exact reply schema, restricts property names
// to the enumerated set, and embeds the article text.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`Parse the research article below and extract ONLY numerical results from molecular dynamics (MD) simulations or force-field-based modeling of polymers.

Do not include experimental results such as DSC, DMA, tensile testing, spectroscopy, or microscopy. To identify simulation data, look for keywords like 'molecular dynamics (MD)', 'simulation', 'computational', 'force field', 'GROMACS', 'LAMMPS'. Actively ignore data associated with experimental keywords like 'synthesized', 'measured', 'characterized by', 'DSC', 'TGA', 'XRD'.

Return a JSON array with one object per extracted property value. Each object must have exactly these keys:
- "polymer_system": the simulated polymer, as named in the text (e.g. "Polystyrene (PS)")
- "force_field": the force field used (e.g. "OPLS-AA")
- "property": one of {{.PropertyList}}
- "value": the numerical value
- "unit": the unit the value is reported in

Rules:
- "property" must be exactly one of the names listed above; do not invent other property names.
- Always report "value" and "unit" together; never a number without its unit.
- If the polymer system is specified with a varying repeat unit, use the most specific system designation present in the text.
- Do not include registered trademark symbols or other special symbols in polymer names.
- Return ONLY a valid JSON array. No commentary, explanations, or markdown formatting.

Article text:
{{.Document}}
`))

// promptData binds the template parameters.
type promptData struct {
	PropertyList string
	Document     string
}

// renderPrompt builds the extraction prompt for one document.
func renderPrompt(document string) (string, error) {
	var names bytes.Buffer
	for i, p := range types.AllProperties {
		if i > 0 {
			names.WriteString(", ")
		}
		names.WriteString(`"` + string(p) + `"`)
	}

	var buf bytes.Buffer
	err := extractionPromptTmpl.Execute(&buf, promptData{
		PropertyList: names.String(),
		Document:     document,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
