// Package extract implements the hybrid multi-script extraction pipeline:
// script detection, language resolution, line segmentation, dictionary
// classification, per-line re-recognition and page/document assembly.
package extract

import (
	"sort"
	"strings"

	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
)

// AutoLanguage requests script-driven language selection.
const AutoLanguage = "auto"

// LanguageSet is an ordered list of validated recognition-language codes.
type LanguageSet []string

// Contains reports whether code is in the set.
func (s LanguageSet) Contains(code string) bool {
	for _, c := range s {
		if c == code {
			return true
		}
	}
	return false
}

// Codes returns a copy of the codes in order.
func (s LanguageSet) Codes() []string {
	return append([]string(nil), s...)
}

// String joins the codes with "+", the engine combination syntax.
func (s LanguageSet) String() string {
	return strings.Join(s, "+")
}

// DefaultScriptLanguages is the closed script-to-language table.
var DefaultScriptLanguages = map[ocr.ScriptLabel]string{
	ocr.ScriptLatin:       "eng",
	ocr.ScriptMeeteiMayek: "mni",
	ocr.ScriptDevanagari:  "hin",
	ocr.ScriptBengali:     "ben",
}

// LanguageResolver maps a request and detected script to the languages a
// page is recognized with.
type LanguageResolver struct {
	ScriptLanguages map[ocr.ScriptLabel]string
	DefaultLanguage string
}

// NewLanguageResolver returns a resolver with the default script table.
func NewLanguageResolver() LanguageResolver {
	return LanguageResolver{
		ScriptLanguages: DefaultScriptLanguages,
		DefaultLanguage: "eng",
	}
}

// IsAuto reports whether requested asks for script-driven selection.
func IsAuto(requested string) bool {
	r := strings.TrimSpace(requested)
	return r == "" || strings.EqualFold(r, AutoLanguage)
}

// Resolve validates the requested languages against the installed set.
//
// An auto request maps the detected script through the table. Explicit
// requests are split on "+" and filtered to installed codes, keeping request
// order. When nothing survives, "eng" is used if installed, otherwise the
// first installed code in sorted order.
func (r LanguageResolver) Resolve(requested string, script ocr.ScriptLabel, installed []string) (LanguageSet, error) {
	if len(installed) == 0 {
		return nil, ocr.NewOCRError("Resolve", ocr.ErrNoLanguageAvailable, "engine reports no installed languages")
	}

	available := make(map[string]bool, len(installed))
	for _, code := range installed {
		available[code] = true
	}

	var candidates []string
	if IsAuto(requested) {
		candidates = []string{r.languageFor(script)}
	} else {
		candidates = strings.Split(requested, "+")
	}

	var set LanguageSet
	for _, code := range candidates {
		code = strings.TrimSpace(code)
		if code == "" || !available[code] || set.Contains(code) {
			continue
		}
		set = append(set, code)
	}
	if len(set) > 0 {
		return set, nil
	}

	if available[r.defaultLanguage()] {
		return LanguageSet{r.defaultLanguage()}, nil
	}
	sorted := append([]string(nil), installed...)
	sort.Strings(sorted)
	return LanguageSet{sorted[0]}, nil
}

func (r LanguageResolver) languageFor(script ocr.ScriptLabel) string {
	if code, ok := r.ScriptLanguages[script]; ok && code != "" {
		return code
	}
	return r.defaultLanguage()
}

func (r LanguageResolver) defaultLanguage() string {
	if r.DefaultLanguage == "" {
		return "eng"
	}
	return r.DefaultLanguage
}
