package quiz

import (
	"fmt"
	"math/rand"
)

// Question is one entry of the trivia catalog. Questions are immutable once
// loaded; the catalog is fixed for the lifetime of the server process.
type Question struct {
	ID       int
	Prompt   string
	Category string
	Choices  []string
	// Correct is the 1-based index into Choices of the right answer.
	Correct int
}

// Catalog is the fixed set of questions served during play.
type Catalog struct {
	questions []Question
	byID      map[int]Question
}

// NewCatalog builds a catalog from the loaded question set. It fails on an
// empty set or on a question whose correct index falls outside its choices.
func NewCatalog(questions []Question) (*Catalog, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("question catalog is empty")
	}

	byID := make(map[int]Question, len(questions))
	for _, q := range questions {
		if q.Correct < 1 || q.Correct > len(q.Choices) {
			return nil, fmt.Errorf("question %d: correct index %d out of range for %d choices",
				q.ID, q.Correct, len(q.Choices))
		}
		if _, ok := byID[q.ID]; ok {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		byID[q.ID] = q
	}

	return &Catalog{questions: questions, byID: byID}, nil
}

// Random picks a question uniformly from the entire catalog. Selection is
// independent of what any user has already been asked, so repeats are
// possible; that is a property of the protocol, not a bug to fix here.
func (c *Catalog) Random() Question {
	return c.questions[rand.Intn(len(c.questions))]
}

// ByID looks up a question by id.
func (c *Catalog) ByID(id int) (Question, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// Size returns the number of questions in the catalog.
func (c *Catalog) Size() int {
	return len(c.questions)
}

// StaticQuestions is the built-in catalog used when no remote question
// source is configured. It keeps the server usable offline and the tests
// hermetic.
func StaticQuestions() []Question {
	return []Question{
		{
			ID:       1,
			Prompt:   "Which planet is known as the Red Planet?",
			Category: "Science & Nature",
			Choices:  []string{"Venus", "Mars", "Jupiter", "Mercury"},
			Correct:  2,
		},
		{
			ID:       2,
			Prompt:   "What is the capital of Australia?",
			Category: "Geography",
			Choices:  []string{"Sydney", "Melbourne", "Canberra", "Perth"},
			Correct:  3,
		},
		{
			ID:       3,
			Prompt:   "The Great Wall of China is visible from the Moon with the naked eye.",
			Category: "General Knowledge",
			Choices:  []string{"True", "False"},
			Correct:  2,
		},
		{
			ID:       4,
			Prompt:   "How many strings does a standard violin have?",
			Category: "Entertainment: Music",
			Choices:  []string{"Four", "Five", "Six", "Seven"},
			Correct:  1,
		},
		{
			ID:       5,
			Prompt:   "Sharks are mammals.",
			Category: "Animals",
			Choices:  []string{"True", "False"},
			Correct:  2,
		},
		{
			ID:       6,
			Prompt:   "Which element has the chemical symbol 'O'?",
			Category: "Science & Nature",
			Choices:  []string{"Gold", "Osmium", "Oxygen", "Tin"},
			Correct:  3,
		},
	}
}
