package examgen

// Letter labels one of the four options.
type Letter string

const (
	LetterA Letter = "A"
	LetterB Letter = "B"
	LetterC Letter = "C"
	LetterD Letter = "D"
)

// Letters lists the option labels in order.
var Letters = [4]Letter{LetterA, LetterB, LetterC, LetterD}

// Index returns the option position of l, or -1 for an invalid letter.
func (l Letter) Index() int {
	for i, x := range Letters {
		if x == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l is one of A-D.
func (l Letter) Valid() bool { return l.Index() >= 0 }

// Source records where a question came from.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceBank     Source = "bank"
	SourceTemplate Source = "template"
)

// Question is a finished multiple-choice exam question. Options is a fixed
// array, so copies of a Question never share option storage.
type Question struct {
	// ID is a UUID assigned when the question is built.
	ID string `json:"id"`

	// Stem is the question text.
	Stem string `json:"stem"`

	// Options holds the four answers, each prefixed "A) " to "D) ".
	Options [4]string `json:"options"`

	// CorrectAnswer indexes into Options.
	CorrectAnswer Letter `json:"correctAnswer"`

	// Explanation justifies the correct answer.
	Explanation string `json:"explanation"`

	Source  Source `json:"source"`
	TopicID string `json:"topicId,omitempty"`
}

// CorrectOption returns the labelled text of the correct option.
func (q Question) CorrectOption() string {
	i := q.CorrectAnswer.Index()
	if i < 0 {
		return ""
	}
	return q.Options[i]
}

// GenerationRequest describes one item of a batch.
type GenerationRequest struct {
	TopicID        string
	TopicName      string
	QuestionIndex  int
	TotalRequested int

	// PriorStems are the stems already produced in this batch, sent to the
	// model so it does not repeat itself.
	PriorStems []string
}

// ProgressFunc is called after each item with 1-based current and total.
type ProgressFunc func(current, total int)
