package examgen

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/abhisek/examgen/internal/llm"
)

// candidate is the shape the model is asked to return. It only feeds the
// response_format hint; responses are read as loose maps by Normalize.
type candidate struct {
	Enunciado   string   `json:"enunciado" jsonschema:"required,minLength=1,description=Texto de la pregunta"`
	Opciones    []string `json:"opciones" jsonschema:"required,minItems=4,maxItems=4,description=Cuatro opciones sin prefijo de letra"`
	Correcta    string   `json:"correcta" jsonschema:"required,enum=A,enum=B,enum=C,enum=D,description=Letra de la opcion correcta"`
	Explicacion string   `json:"explicacion" jsonschema:"required,minLength=1,description=Por que la opcion correcta es correcta"`
}

// CandidateSchema is sent to the provider as the structured-output hint.
var CandidateSchema = &llm.Schema{
	Name:        "exam-question",
	Description: "Una pregunta de examen de opcion multiple con cuatro opciones",
	Definition:  reflectDefinition(&candidate{}),
}

func reflectDefinition(v any) map[string]any {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		panic("examgen: reflect schema: " + err.Error())
	}
	var def map[string]any
	if err := json.Unmarshal(raw, &def); err != nil {
		panic("examgen: decode schema: " + err.Error())
	}
	delete(def, "$schema")
	delete(def, "$id")
	return def
}

// sentinelPattern matches option text that is a stringified non-value.
const sentinelPattern = `^[A-D]\) *(\[object Object\]|null|undefined)? *$`

func labelledOption(letter string) map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": "^" + letter + `\) \S`,
		"not":     map[string]any{"pattern": sentinelPattern},
	}
}

// QuestionSchema is the strict contract every finished Question satisfies.
var QuestionSchema = &llm.Schema{
	Name:        "exam-question-strict",
	Description: "A normalised exam question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":   map[string]any{"type": "string", "minLength": 1},
			"stem": map[string]any{"type": "string", "pattern": `\S`},
			"options": map[string]any{
				"type":        "array",
				"minItems":    4,
				"maxItems":    4,
				"prefixItems": []any{labelledOption("A"), labelledOption("B"), labelledOption("C"), labelledOption("D")},
			},
			"correctAnswer": map[string]any{"type": "string", "enum": []any{"A", "B", "C", "D"}},
			"explanation":   map[string]any{"type": "string", "pattern": `\S`},
			"source":        map[string]any{"type": "string", "enum": []any{"llm", "bank", "template"}},
			"topicId":       map[string]any{"type": "string"},
		},
		"required": []any{"id", "stem", "options", "correctAnswer", "explanation", "source"},
	},
}

// BankSchema validates the embedded question bank file.
var BankSchema = &llm.Schema{
	Name:        "question-bank",
	Description: "Static per-topic question bank",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topics": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"key":  map[string]any{"type": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
						"name": map[string]any{"type": "string", "minLength": 1},
						"questions": map[string]any{
							"type":     "array",
							"minItems": 1,
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"enunciado": map[string]any{"type": "string", "minLength": 1},
									"opciones": map[string]any{
										"type":     "array",
										"minItems": 4,
										"maxItems": 4,
										"items":    map[string]any{"type": "string", "minLength": 1},
									},
									"correcta":    map[string]any{"type": "string", "enum": []any{"A", "B", "C", "D"}},
									"explicacion": map[string]any{"type": "string", "minLength": 1},
								},
								"required": []any{"enunciado", "opciones", "correcta", "explicacion"},
							},
						},
					},
					"required": []any{"key", "name", "questions"},
				},
			},
		},
		"required": []any{"topics"},
	},
}

// validateQuestion checks q against QuestionSchema.
func validateQuestion(q Question) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return llm.ValidateJSON(QuestionSchema, raw)
}
