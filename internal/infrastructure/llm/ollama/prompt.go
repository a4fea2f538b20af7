package ollama

import "fmt"

const ocrPrompt = `Transcribe all text visible in this image.
Return only the text, preserving line breaks. No commentary.`

func buildHypothesisPrompt(query string) string {
	const maxQuery = 2000
	if len(query) > maxQuery {
		query = query[:maxQuery]
	}
	return fmt.Sprintf(`Write a short factual passage that would answer the question below.
It will be used only to search a document index, so prefer concrete terms over hedging.

Question:
%s
`, query)
}
