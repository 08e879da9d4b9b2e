package extract

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// DefaultThreshold is the match ratio at or above which a line is primary.
const DefaultThreshold = 0.2

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// Vocabulary is the reference word set and decision threshold.
type Vocabulary struct {
	Words     map[string]struct{}
	Threshold float64
}

type vocabularyFile struct {
	Threshold *float64 `yaml:"threshold"`
	Words     []string `yaml:"words"`
}

// NewVocabulary builds a vocabulary from words, normalizing each entry.
func NewVocabulary(words []string, threshold float64) Vocabulary {
	v := Vocabulary{Words: make(map[string]struct{}, len(words)), Threshold: threshold}
	for _, w := range words {
		if n := Normalize(w); n != "" {
			v.Words[n] = struct{}{}
		}
	}
	return v
}

// DefaultVocabulary returns the embedded reference vocabulary.
func DefaultVocabulary() Vocabulary {
	v, err := ParseVocabulary(defaultVocabularyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary is invalid: %v", err))
	}
	return v
}

// LoadVocabulary reads a YAML vocabulary file with "words" and an optional
// "threshold".
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	v, err := ParseVocabulary(data)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ParseVocabulary decodes vocabulary YAML.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Vocabulary{}, fmt.Errorf("invalid vocabulary YAML: %w", err)
	}
	if len(f.Words) == 0 {
		return Vocabulary{}, fmt.Errorf("vocabulary has no words")
	}
	threshold := DefaultThreshold
	if f.Threshold != nil {
		threshold = *f.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return Vocabulary{}, fmt.Errorf("threshold %v outside [0,1]", threshold)
	}
	return NewVocabulary(f.Words, threshold), nil
}

// Contains reports whether the normalized token is in the vocabulary.
func (v Vocabulary) Contains(token string) bool {
	_, ok := v.Words[token]
	return ok
}

// Normalize decomposes token (NFKD), keeps ASCII letters only and lowercases.
func Normalize(token string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(token) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

// Verdict is the classifier's decision for one line.
type Verdict int

const (
	// VerdictSkip marks a line with no text; it produces no output.
	VerdictSkip Verdict = iota
	// VerdictPrimary keeps the provisional primary-language text.
	VerdictPrimary
	// VerdictSecondary sends the line to re-recognition.
	VerdictSecondary
)

func (v Verdict) String() string {
	switch v {
	case VerdictPrimary:
		return "primary"
	case VerdictSecondary:
		return "secondary"
	default:
		return "skip"
	}
}

// Classification is the outcome of scoring one line.
type Classification struct {
	Verdict    Verdict
	MatchRatio float64
	Tokens     []string
}

// LineClassifier is a binary primary-language gate over a vocabulary.
type LineClassifier struct {
	Vocabulary Vocabulary
	Log        zerolog.Logger
}

// Classify scores the line's provisional text. Lines with no normalized
// tokens (numbers, punctuation) are secondary.
func (c LineClassifier) Classify(region LineRegion) Classification {
	text := region.Text()
	if text == "" {
		return Classification{Verdict: VerdictSkip}
	}

	var tokens []string
	for _, field := range strings.Fields(text) {
		if t := Normalize(field); t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return Classification{Verdict: VerdictSecondary}
	}

	matches := 0
	for _, t := range tokens {
		if c.Vocabulary.Contains(t) {
			matches++
		}
	}
	ratio := float64(matches) / float64(len(tokens))

	verdict := VerdictSecondary
	if ratio >= c.Vocabulary.Threshold {
		verdict = VerdictPrimary
	}

	c.Log.Debug().
		Str("line", text).
		Float64("ratio", ratio).
		Stringer("verdict", verdict).
		Msg("Classified line")

	return Classification{Verdict: verdict, MatchRatio: ratio, Tokens: tokens}
}
