package examgen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	stemKeys        = []string{"enunciado", "pregunta", "question", "text"}
	answerKeys      = []string{"correcta", "correct", "answer", "respuesta_correcta", "correct_answer"}
	explanationKeys = []string{"explicacion", "explanation", "justificacion", "razon", "explicación"}

	// wrapperKeys hold a question nested one level down.
	wrapperKeys = []string{"pregunta", "question", "preguntas", "questions", "data", "resultado", "result"}
)

// NormalizeJSON decodes content and normalises it. Content that is not a
// JSON object is a *NormalizationError.
func NormalizeJSON(content []byte, topicName string) (Question, error) {
	var raw map[string]any
	if err := json.Unmarshal(content, &raw); err != nil {
		return Question{}, &NormalizationError{Field: "response", Reason: "not a JSON object: " + err.Error()}
	}
	return Normalize(raw, topicName)
}

// Normalize turns a loosely shaped model response into a Question. It never
// panics; anything it cannot repair is a *NormalizationError.
func Normalize(raw map[string]any, topicName string) (q Question, err error) {
	defer func() {
		if r := recover(); r != nil {
			q = Question{}
			err = &NormalizationError{Field: "response", Reason: fmt.Sprint("panic during extraction: ", r)}
		}
	}()

	if raw == nil {
		return Question{}, &NormalizationError{Field: "response", Reason: "empty object"}
	}
	raw = unwrap(raw, 3)

	stem, ok := firstNonEmptyString(raw, stemKeys)
	if !ok {
		return Question{}, &NormalizationError{Field: "stem", Reason: "missing or empty"}
	}

	opts, _ := extractOptions(raw, topicName)

	answer, err := extractAnswer(raw, opts)
	if err != nil {
		return Question{}, err
	}

	explanation, ok := firstNonEmptyString(raw, explanationKeys)
	if !ok {
		return Question{}, &NormalizationError{Field: "explanation", Reason: "missing or empty"}
	}

	q = Question{
		ID:            uuid.NewString(),
		Stem:          stem,
		Options:       labelOptions(opts),
		CorrectAnswer: answer,
		Explanation:   explanation,
		Source:        SourceLLM,
	}
	if err := validateQuestion(q); err != nil {
		return Question{}, &NormalizationError{Field: "question", Reason: err.Error()}
	}
	return q, nil
}

// unwrap descends into {"pregunta": {...}} or {"preguntas": [{...}]} when
// the top level has no stem of its own.
func unwrap(raw map[string]any, depth int) map[string]any {
	if depth == 0 {
		return raw
	}
	if _, ok := firstNonEmptyString(raw, stemKeys); ok {
		return raw
	}
	for _, k := range wrapperKeys {
		switch v := raw[k].(type) {
		case map[string]any:
			return unwrap(v, depth-1)
		case []any:
			if len(v) > 0 {
				if inner, ok := v[0].(map[string]any); ok {
					return unwrap(inner, depth-1)
				}
			}
		}
	}
	return raw
}

var (
	standaloneLetter = regexp.MustCompile(`\b([A-D])\b`)
	leadingLetter    = regexp.MustCompile(`^\s*\(?([a-dA-D])\s*([\).:]|$)`)

	// keywordLetter finds "respuesta c" or "la opción d es". The letter must
	// end the clause so the Spanish word "a" is not taken for an answer.
	keywordLetter = regexp.MustCompile(`(?i)\b(?:opci[oó]n|respuesta|letra)\s*:?\s*\(?([a-d])(?:\s*[\).:,;]|\s*$|\s+es\b)`)
)

// extractAnswer resolves the correct letter: an exact letter first, then the
// text of one of the options, then a letter found inside the value.
func extractAnswer(raw map[string]any, opts [4]string) (Letter, error) {
	v, ok := firstPresent(raw, answerKeys)
	if !ok {
		return "", &NormalizationError{Field: "correctAnswer", Reason: "missing"}
	}
	s := strings.TrimSpace(stringify(v))
	if isSentinel(s) {
		return "", &NormalizationError{Field: "correctAnswer", Reason: fmt.Sprintf("unusable value %q", s)}
	}

	if l := Letter(strings.ToUpper(s)); l.Valid() {
		return l, nil
	}

	for i, o := range opts {
		if strings.EqualFold(strings.TrimSpace(o), s) {
			return Letters[i], nil
		}
	}

	if m := leadingLetter.FindStringSubmatch(s); m != nil {
		return Letter(strings.ToUpper(m[1])), nil
	}
	if m := keywordLetter.FindStringSubmatch(s); m != nil {
		return Letter(strings.ToUpper(m[1])), nil
	}
	if m := standaloneLetter.FindStringSubmatch(s); m != nil {
		return Letter(m[1]), nil
	}

	return "", &NormalizationError{Field: "correctAnswer", Reason: fmt.Sprintf("no letter A-D in %q", s)}
}

// firstPresent returns the value of the first key present in m.
func firstPresent(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// firstNonEmptyString returns the first key whose value is a non-blank
// string. Keys holding other types are skipped.
func firstNonEmptyString(m map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" && !isSentinel(s) {
				return s, true
			}
		}
	}
	return "", false
}
