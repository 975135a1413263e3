package generate

import (
	"bytes"
	"fmt"
	"text/template"
)

// instructionParams feeds the mode instruction templates.
type instructionParams struct {
	Count    int
	Level    string
	CaseType string
	Query    string
	Prompt   string
	Tool     string
	Target   string
	CaseJSON string
	Reason   string
}

const promptInstructionTmpl = `You are a senior QA engineer. Turn the requirement below into a precise, self-contained prompt for generating {{.Count}} {{.Level}}-level {{.CaseType}} test cases. The prompt must name the feature under test, its inputs and preconditions, and the observable results to verify.

Requirement:
{{.Query}}

Return only the prompt text.`

const casesInstructionTmpl = `You are a senior QA engineer. Based on the requirement below, write {{.Count}} {{.Level}}-level {{.CaseType}} test cases.

Requirement:
{{.Prompt}}

Return ONLY a JSON array. Each element must be an object with exactly these fields:
  "id"              string
  "title"           non-empty string
  "description"     string
  "preconditions"   array of strings
  "steps"           non-empty array of strings
  "expected_result" string
  "priority"        one of "Low", "Medium", "High"
  "tags"            array of strings

No prose before or after the array.`

const scriptInstructionTmpl = `You are a test automation engineer. Write a {{.Tool}} test script implementing the test case below{{if .Target}} against {{.Target}}{{end}}.

Test case:
{{.CaseJSON}}

Requirements:
- implement every step in order and assert the expected result
- keep the script self-contained and runnable

Return only the script source code.`

// fillInstruction executes an inline instruction template with params.
func fillInstruction(name, tmplStr string, params instructionParams) (string, error) {
	funcMap := template.FuncMap{
		"sub": func(a, b int) int { return a - b },
		"add": func(a, b int) int { return a + b },
	}

	tmpl, err := template.New(name).Funcs(funcMap).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// repairInstruction appends the validation failure to the original
// instruction. Each repair is a fresh drafting call, never a patch of
// prior output.
func repairInstruction(instruction, reason string) string {
	return fmt.Sprintf("%s\n\nThe previous response failed validation: %s\nProduce a corrected response that satisfies every requirement above. Return only the corrected output.",
		instruction, reason)
}
