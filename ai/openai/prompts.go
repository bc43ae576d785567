package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/flowrun/ai"
)

const conceptResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "core_concepts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "concept": {"type": "string", "pattern": "^[a-z0-9]+( [a-z0-9]+)*$"},
          "type": {"type": "string"},
          "importance": {"type": "integer", "minimum": 1, "maximum": 10}
        },
        "required": ["concept", "type", "importance"],
        "additionalProperties": false
      }
    }
  },
  "required": ["core_concepts"],
  "additionalProperties": false
}`

const conceptPromptTemplate = `Given the text below, list the concepts that can be used to describe it and return them as JSON.

Output ONLY valid JSON which complies with this schema. Do not include any preamble or explanation.
Start your response with the opening brace { and end with the closing brace }.

%s

Rules:
- Concept names must be lowercase, 1-3 words, singular form only.
- Type must be exactly one of: %s.
- Importance is an integer from 1 (barely relevant) to 10 (central to the text).
- Include only concepts that are mentioned or clearly implied by the text. Do not invent.
- If no concepts can be identified, return {"core_concepts": []}.

Example:
Input: "The quarterly invoice from Acme Corp was paid in March."
Output:
{
  "core_concepts": [
    {"concept":"invoice","type":"document","importance":9},
    {"concept":"acme corp","type":"organization","importance":8},
    {"concept":"payment","type":"activity","importance":6},
    {"concept":"march","type":"time","importance":4}
  ]
}`

const summaryPromptTemplate = `Summarize the text you are given in plain English, in at most %d words.
Answer with the summary only. Don't provide explanations, headings or lists.`

// buildSystemPrompt creates the concept prompt with concept types embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(conceptPromptTemplate,
		conceptResponseSchema,
		strings.Join(ai.ConceptTypes, ", "))
}

func buildSummaryPrompt(maxWords int) string {
	return fmt.Sprintf(summaryPromptTemplate, maxWords)
}
