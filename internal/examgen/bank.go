package examgen

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/abhisek/examgen/internal/llm"
)

//go:embed bank/questions.json
var embeddedBankJSON []byte

// Bank is a read-only source of pre-authored questions keyed by topic.
type Bank interface {
	// Lookup returns the questions for a normalised topic key.
	Lookup(topicKey string) ([]Question, bool)

	// Topics lists the topics the bank knows, sorted by key.
	Topics() []BankTopic
}

// BankTopic summarises one bank topic.
type BankTopic struct {
	Key   string
	Name  string
	Count int
}

type bankFile struct {
	Topics []struct {
		Key       string `json:"key"`
		Name      string `json:"name"`
		Questions []struct {
			Enunciado   string   `json:"enunciado"`
			Opciones    []string `json:"opciones"`
			Correcta    string   `json:"correcta"`
			Explicacion string   `json:"explicacion"`
		} `json:"questions"`
	} `json:"topics"`
}

// EmbeddedBank is a Bank held in memory.
type EmbeddedBank struct {
	questions map[string][]Question
	names     map[string]string
	keys      []string
}

// LoadEmbeddedBank parses the bank compiled into the binary.
func LoadEmbeddedBank() (*EmbeddedBank, error) {
	return ParseBank(embeddedBankJSON)
}

// ParseBank validates data against BankSchema and builds a bank from it.
func ParseBank(data []byte) (*EmbeddedBank, error) {
	if err := llm.ValidateJSON(BankSchema, data); err != nil {
		return nil, fmt.Errorf("question bank: %w", err)
	}

	var f bankFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("question bank: %w", err)
	}

	b := &EmbeddedBank{
		questions: make(map[string][]Question, len(f.Topics)),
		names:     make(map[string]string, len(f.Topics)),
	}
	for _, t := range f.Topics {
		key := NormalizeTopicKey(t.Key)
		if _, dup := b.questions[key]; dup {
			return nil, fmt.Errorf("question bank: duplicate topic %q", key)
		}
		for _, raw := range t.Questions {
			var opts [4]string
			copy(opts[:], raw.Opciones)
			b.questions[key] = append(b.questions[key], Question{
				Stem:          raw.Enunciado,
				Options:       labelOptions(opts),
				CorrectAnswer: Letter(raw.Correcta),
				Explanation:   raw.Explicacion,
				Source:        SourceBank,
			})
		}
		b.names[key] = t.Name
		b.keys = append(b.keys, key)
	}
	sort.Strings(b.keys)
	return b, nil
}

// Lookup finds a topic by exact key, then by token match over bank keys:
// a bank key matches when all tokens of the query appear in it, or all of
// its tokens appear in the query. Tokens of five or more letters tolerate
// one edit. The returned slice is a copy.
func (b *EmbeddedBank) Lookup(topicKey string) ([]Question, bool) {
	key := NormalizeTopicKey(topicKey)
	if qs, ok := b.questions[key]; ok {
		return append([]Question(nil), qs...), true
	}
	if len(key) < 3 {
		return nil, false
	}

	query := strings.Split(key, "-")
	best, bestScore := "", 0
	for _, k := range b.keys {
		if score := tokenOverlap(query, strings.Split(k, "-")); score > bestScore {
			best, bestScore = k, score
		}
	}
	if best == "" {
		return nil, false
	}
	return append([]Question(nil), b.questions[best]...), true
}

// tokenOverlap returns the number of shared tokens when one token set is
// contained in the other, and 0 otherwise.
func tokenOverlap(query, candidate []string) int {
	inCandidate := lo.Filter(query, func(t string, _ int) bool { return containsToken(candidate, t) })
	if len(inCandidate) == len(query) {
		return len(query)
	}
	if lo.EveryBy(candidate, func(t string) bool { return containsToken(query, t) }) {
		return len(candidate)
	}
	return 0
}

func containsToken(tokens []string, t string) bool {
	return lo.SomeBy(tokens, func(x string) bool { return sameToken(x, t) })
}

func sameToken(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) < 5 || len(b) < 5 {
		return false
	}
	return fuzzy.LevenshteinDistance(a, b) <= 1
}

func (b *EmbeddedBank) Topics() []BankTopic {
	return lo.Map(b.keys, func(k string, _ int) BankTopic {
		return BankTopic{Key: k, Name: b.names[k], Count: len(b.questions[k])}
	})
}

// NormalizeTopicKey lower-cases s, folds accents and joins words with "-":
// "Derechos Humanos (DIH)" becomes "derechos-humanos-dih".
func NormalizeTopicKey(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
