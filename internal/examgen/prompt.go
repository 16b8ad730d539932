package examgen

import (
	"fmt"
	"strings"
)

const systemPrompt = `Eres un redactor de exámenes de opción múltiple para oposiciones y certificaciones profesionales en español.

Reglas:
- Genera una sola pregunta sobre el tema indicado.
- Responde únicamente con un objeto JSON, sin texto adicional ni bloques de código.
- El objeto debe tener exactamente estos campos:
  "enunciado": el texto de la pregunta.
  "opciones": una lista de exactamente 4 cadenas, sin letras ni prefijos.
  "correcta": la letra de la opción correcta, una de "A", "B", "C" o "D".
  "explicacion": una justificación breve de por qué esa opción es la correcta.
- Solo una opción puede ser correcta. Los distractores deben ser plausibles.
- No repitas ninguna pregunta de la lista "ya formuladas".`

// buildUserMessage constructs the user message for one item of a batch.
func buildUserMessage(req GenerationRequest, cfg Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Tema: %s\n", req.TopicName)
	if req.TotalRequested > 0 {
		fmt.Fprintf(&b, "Pregunta %d de %d\n", req.QuestionIndex+1, req.TotalRequested)
	}

	b.WriteString("\nYa formuladas en este examen:\n")
	b.WriteString(buildDedup(req.PriorStems, cfg.MaxPriorStems))

	return b.String()
}
