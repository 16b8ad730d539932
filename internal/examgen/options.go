package examgen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// sentinels are string forms of values that are not real option text.
var sentinels = []string{"[object Object]", "null", "undefined", ""}

func isSentinel(s string) bool {
	return lo.Contains(sentinels, strings.TrimSpace(s))
}

// optionsKeys name the field that carries the options, top-level or nested.
var optionsKeys = []string{"opciones", "options", "choices", "respuestas"}

// letterKeyPatterns expand to per-letter lookup keys, in priority order.
// {L} is the upper-case letter, {l} the lower-case one.
var letterKeyPatterns = []string{
	"{L}", "{l}", "{L})", "{l})", "{L}.", "{l}.",
	"opcion{L}", "opcion_{L}", "opción{L}", "option{L}", "option_{L}",
}

func letterKeys(l Letter) []string {
	r := strings.NewReplacer("{L}", string(l), "{l}", strings.ToLower(string(l)))
	return lo.Map(letterKeyPatterns, func(p string, _ int) string {
		return r.Replace(p)
	})
}

// optionSet is the result of one extractor. polluted means a sentinel was
// found where real text was expected, which forces synthetic options.
type optionSet struct {
	values   []string
	polluted bool
}

type extractor func(m map[string]any) (optionSet, bool)

// extractOptions runs the option chain and always returns four usable
// strings. synthetic reports whether placeholders replaced the model's
// options.
func extractOptions(raw map[string]any, topicName string) (opts [4]string, synthetic bool) {
	var set optionSet
	var ok bool

	if field, present := firstPresent(raw, optionsKeys); present {
		set, ok = optionsFromValue(field)
	} else {
		// No options field: the model may have put A..D next to the stem.
		set, ok = fromLetterKeys(raw)
	}

	if !ok || set.polluted {
		return syntheticOptions(topicName), true
	}

	values := lo.Map(set.values, func(s string, _ int) string { return strings.TrimSpace(s) })
	if len(values) < 4 {
		values = padOptions(values, topicName)
	}
	if lo.SomeBy(values[:4], isSentinel) {
		return syntheticOptions(topicName), true
	}

	copy(opts[:], values[:4])
	return opts, false
}

// optionsFromValue dispatches on the dynamic type of an options field.
func optionsFromValue(v any) (optionSet, bool) {
	switch t := v.(type) {
	case []any:
		return fromSequence(t)
	case []string:
		return fromSequence(lo.ToAnySlice(t))
	case map[string]any:
		return fromMapping(t)
	case string:
		return fromString(t)
	}
	return optionSet{}, false
}

// fromSequence takes the first four items of a list.
func fromSequence(items []any) (optionSet, bool) {
	if len(items) < 4 {
		return optionSet{}, false
	}
	values := lo.Map(items[:4], func(v any, _ int) string {
		return strings.TrimSpace(stringify(v))
	})
	return optionSet{values: values, polluted: lo.SomeBy(values, isSentinel)}, true
}

var mappingExtractors = []extractor{
	fromLetterKeys,
	fromNumericKeys,
	fromNestedField,
	fromMappingValues,
}

func fromMapping(m map[string]any) (optionSet, bool) {
	for _, ex := range mappingExtractors {
		if set, ok := ex(m); ok {
			return set, true
		}
	}
	return optionSet{}, false
}

// fromLetterKeys looks up A..D under the key spellings in letterKeys. It
// only succeeds when all four letters are found.
func fromLetterKeys(m map[string]any) (optionSet, bool) {
	return fromKeyedLookups(m, func(i int) []string { return letterKeys(Letters[i]) })
}

// fromNumericKeys looks up "0".."3".
func fromNumericKeys(m map[string]any) (optionSet, bool) {
	return fromKeyedLookups(m, func(i int) []string { return []string{strconv.Itoa(i)} })
}

func fromKeyedLookups(m map[string]any, keysFor func(i int) []string) (optionSet, bool) {
	var set optionSet
	for i := range Letters {
		found := false
		for _, k := range keysFor(i) {
			v, ok := m[k]
			if !ok {
				continue
			}
			s := strings.TrimSpace(stringify(v))
			if s == "" {
				continue
			}
			set.values = append(set.values, s)
			set.polluted = set.polluted || isSentinel(s)
			found = true
			break
		}
		if !found {
			return optionSet{}, false
		}
	}
	return set, true
}

// fromNestedField handles {"opciones": {"choices": [...]}}.
func fromNestedField(m map[string]any) (optionSet, bool) {
	for _, k := range optionsKeys {
		if items, ok := m[k].([]any); ok {
			return fromSequence(items)
		}
	}
	return optionSet{}, false
}

// fromMappingValues takes every usable value in key order and pads the
// rest with placeholders.
func fromMappingValues(m map[string]any) (optionSet, bool) {
	keys := lo.Keys(m)
	sort.Strings(keys)

	values := lo.FilterMap(keys, func(k string, _ int) (string, bool) {
		switch m[k].(type) {
		case map[string]any, []any:
			return "", false
		}
		s := strings.TrimSpace(stringify(m[k]))
		return s, !isSentinel(s)
	})
	if len(values) == 0 {
		return optionSet{}, false
	}
	if len(values) > 4 {
		values = values[:4]
	}
	return optionSet{values: values}, true
}

var optionSplitter = regexp.MustCompile(`[\n;|]`)

// fromString re-parses JSON-encoded options, or splits a delimited list.
func fromString(s string) (optionSet, bool) {
	s = strings.TrimSpace(s)
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		switch parsed.(type) {
		case []any, map[string]any:
			return optionsFromValue(parsed)
		}
	}

	parts := lo.FilterMap(optionSplitter.Split(s, -1), func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	})
	if len(parts) < 4 {
		return optionSet{}, false
	}
	return optionSet{values: parts[:4], polluted: lo.SomeBy(parts[:4], isSentinel)}, true
}

func syntheticOptions(topicName string) [4]string {
	return [4]string{
		fmt.Sprintf("Un principio fundamental de %s", topicName),
		fmt.Sprintf("Una excepción poco habitual en %s", topicName),
		fmt.Sprintf("Un concepto ajeno a %s", topicName),
		"Ninguna de las anteriores",
	}
}

func padOptions(values []string, topicName string) []string {
	out := append([]string(nil), values...)
	for n := 1; len(out) < 4; n++ {
		out = append(out, fmt.Sprintf("Otra afirmación sobre %s (%d)", topicName, n))
	}
	return out
}

// labelPrefix matches an existing "A) ", "b. ", "(C) " or "D: " label.
// strongLabel only matches the parenthesised forms.
var (
	labelPrefix = regexp.MustCompile(`^\(?([A-Da-d])\s*[\).:]\s*`)
	strongLabel = regexp.MustCompile(`^\(?([A-Da-d])\)\s*`)
)

// labelOptions prefixes each option with its letter, replacing a label the
// model already added for the same position. "A." and "A:" only count as
// labels when all four options carry one, so "A. Lincoln" keeps its initial.
func labelOptions(opts [4]string) [4]string {
	re := labelPrefix
	for i, o := range opts {
		if ownLabel(labelPrefix, strings.TrimSpace(o), i) == "" {
			re = strongLabel
			break
		}
	}

	var out [4]string
	for i, o := range opts {
		o = strings.TrimSpace(o)
		if rest := ownLabel(re, o, i); rest != "" {
			o = rest
		}
		out[i] = string(Letters[i]) + ") " + o
	}
	return out
}

// ownLabel returns o without its label when re finds the label of position
// i followed by text, and "" otherwise.
func ownLabel(re *regexp.Regexp, o string, i int) string {
	m := re.FindStringSubmatch(o)
	if m == nil || !strings.EqualFold(m[1], string(Letters[i])) {
		return ""
	}
	return strings.TrimSpace(o[len(m[0]):])
}

// stringify renders a decoded JSON value the way a browser would print it.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		return "[object Object]"
	case []any:
		return strings.Join(lo.Map(t, func(x any, _ int) string {
			if x == nil {
				return ""
			}
			return stringify(x)
		}), ",")
	}
	return fmt.Sprint(v)
}
