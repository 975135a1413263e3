package generate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// CasesFilename is the JSON artifact written for an accepted batch; the
// .txt twin is the human-readable rendering of the same batch.
const (
	CasesFilename     = "test_cases.json"
	CasesTextFilename = "test_cases.txt"
)

// ReadArtifact reads a typed JSON artifact from dir. A missing file
// returns (nil, nil).
func ReadArtifact[T any](dir, filename string) (*T, error) {
	path := filepath.Join(dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read artifact %s: %w", filename, err)
	}
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", filename, err)
	}
	return &result, nil
}

// WriteArtifact writes a typed JSON artifact to dir, creating dir if
// needed.
func WriteArtifact(dir, filename string, data any) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", filename, err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), raw, 0644); err != nil {
		return fmt.Errorf("write artifact %s: %w", filename, err)
	}
	return nil
}

// SaveCases persists an accepted batch as JSON plus a readable text
// rendering. Returns both paths.
func SaveCases(dir string, cases []TestCase) (jsonPath, textPath string, err error) {
	if err := WriteArtifact(dir, CasesFilename, cases); err != nil {
		return "", "", err
	}
	textPath = filepath.Join(dir, CasesTextFilename)
	if err := os.WriteFile(textPath, []byte(renderCasesText(cases)), 0644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", CasesTextFilename, err)
	}
	return filepath.Join(dir, CasesFilename), textPath, nil
}

// renderCasesText formats a batch for humans, one numbered section per
// case.
func renderCasesText(cases []TestCase) string {
	var b strings.Builder
	for i, tc := range cases {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s\n", tc.ID, tc.Title)
		fmt.Fprintf(&b, "Priority: %s\n", tc.Priority)
		if tc.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", tc.Description)
		}
		if len(tc.Preconditions) > 0 {
			b.WriteString("Preconditions:\n")
			for _, p := range tc.Preconditions {
				fmt.Fprintf(&b, "  - %s\n", p)
			}
		}
		b.WriteString("Steps:\n")
		for j, s := range tc.Steps {
			fmt.Fprintf(&b, "  %d. %s\n", j+1, s)
		}
		if tc.ExpectedResult != "" {
			fmt.Fprintf(&b, "Expected: %s\n", tc.ExpectedResult)
		}
		if len(tc.Tags) > 0 {
			fmt.Fprintf(&b, "Tags: %s\n", strings.Join(tc.Tags, ", "))
		}
	}
	return b.String()
}

// SaveScript persists one script with a tool-appropriate extension,
// superseding any previous artifact for the same case and tool.
func SaveScript(dir string, sc Script) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create script dir: %w", err)
	}
	path := filepath.Join(dir, ScriptFilename(sc))
	if err := os.WriteFile(path, []byte(sc.SourceText), 0644); err != nil {
		return "", fmt.Errorf("write script %s: %w", path, err)
	}
	return path, nil
}

// ScriptFilename derives the artifact filename for a script.
func ScriptFilename(sc Script) string {
	return fmt.Sprintf("%s_%s%s", strings.ToLower(sc.TestCaseID), strings.ToLower(sc.Tool), scriptExt(sc.Tool))
}

// scriptExt maps an automation tool to its source extension.
func scriptExt(tool string) string {
	switch strings.ToLower(tool) {
	case "restassured":
		return ".java"
	case "cypress":
		return ".js"
	default: // selenium, playwright, appium
		return ".py"
	}
}

var scriptNameRe = regexp.MustCompile(`^(tc_\d+)_([a-z]+)\.(py|js|java)$`)

// LoadScripts reads previously saved scripts back from dir, recovering
// case id and tool from the filename convention. Files that do not
// match the convention are ignored. Target is not stored in the
// artifact; callers fill it from configuration.
func LoadScripts(dir string) ([]Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read script dir: %w", err)
	}

	var scripts []Script
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := scriptNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read script %s: %w", e.Name(), err)
		}
		scripts = append(scripts, Script{
			TestCaseID: strings.ToUpper(m[1]),
			Tool:       m[2],
			SourceText: string(src),
		})
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].TestCaseID < scripts[j].TestCaseID })
	return scripts, nil
}
