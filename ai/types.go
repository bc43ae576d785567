package ai

// ExtractedConcept is a concept inferred from text.
type ExtractedConcept struct {
	// Name is lowercase, 1-3 words, singular form.
	// Example: "eiffel tower", "paris", "invoice"
	Name string

	// Type is one of ConceptTypes.
	Type string

	// Importance is a score from 1-10; higher is more central to the text.
	Importance int
}

// ConceptTypes defines the valid categories for extracted concepts.
var ConceptTypes = []string{
	"abstract_concept",
	"activity",
	"document",
	"event",
	"law",
	"measurement",
	"money",
	"organization",
	"person",
	"place",
	"process",
	"product",
	"software",
	"technology",
	"time",
	"tool",
}
