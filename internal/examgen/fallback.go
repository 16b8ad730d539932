package examgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Fallback produces a question without calling the model: from the bank
// when the topic has entries, otherwise from a fixed template.
type Fallback struct {
	bank Bank
}

// NewFallback creates a Fallback over bank. A nil bank always yields
// template questions.
func NewFallback(bank Bank) *Fallback {
	return &Fallback{bank: bank}
}

// Provide returns the fallback question for position index of a batch. Bank
// entries are cycled by index, so the same inputs pick the same entry.
func (f *Fallback) Provide(topicID, topicName string, index int) Question {
	var q Question
	if entries, ok := f.lookup(topicID, topicName); ok {
		if index < 0 {
			index = -index
		}
		q = entries[index%len(entries)]
	} else {
		q = templateQuestion(topicName)
	}
	q.ID = uuid.NewString()
	q.TopicID = topicID
	return q
}

func (f *Fallback) lookup(topicID, topicName string) ([]Question, bool) {
	if f.bank == nil {
		return nil, false
	}
	for _, key := range []string{topicID, topicName} {
		if key == "" {
			continue
		}
		if qs, ok := f.bank.Lookup(key); ok && len(qs) > 0 {
			return qs, true
		}
	}
	return nil, false
}

func templateQuestion(topicName string) Question {
	return Question{
		Stem: fmt.Sprintf("¿Cuál de las siguientes afirmaciones describe mejor un aspecto fundamental de %s?", topicName),
		Options: labelOptions([4]string{
			fmt.Sprintf("Es un elemento esencial para comprender %s", topicName),
			fmt.Sprintf("Carece de relevancia en el estudio de %s", topicName),
			fmt.Sprintf("Solo se aplica a casos excepcionales de %s", topicName),
			fmt.Sprintf("Fue eliminado de la normativa sobre %s", topicName),
		}),
		CorrectAnswer: LetterA,
		Explanation:   fmt.Sprintf("Pregunta de respaldo generada sin conexión con el modelo. Repasa los contenidos básicos de %s.", topicName),
		Source:        SourceTemplate,
	}
}
