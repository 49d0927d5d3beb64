package exam

import "fmt"

// AnswerStore tracks the selections of one exam attempt. It is not safe for
// concurrent use; the owning session serializes access.
type AnswerStore struct {
	order     []string
	questions map[string]Question
	answers   map[string]string
}

func NewAnswerStore(questions []Question) *AnswerStore {
	store := &AnswerStore{
		order:     make([]string, 0, len(questions)),
		questions: make(map[string]Question, len(questions)),
		answers:   make(map[string]string),
	}
	for _, question := range questions {
		if _, seen := store.questions[question.ID]; seen {
			continue
		}
		store.order = append(store.order, question.ID)
		store.questions[question.ID] = question
	}
	return store
}

// Set records choiceID for questionID, replacing any previous selection.
func (s *AnswerStore) Set(questionID, choiceID string) error {
	question, ok := s.questions[questionID]
	if !ok {
		return fmt.Errorf("%w: unknown question %q", ErrInvalidChoice, questionID)
	}
	if !question.HasChoice(choiceID) {
		return fmt.Errorf("%w: choice %q for question %q", ErrInvalidChoice, choiceID, questionID)
	}
	s.answers[questionID] = choiceID
	return nil
}

func (s *AnswerStore) Get(questionID string) (string, bool) {
	choiceID, ok := s.answers[questionID]
	return choiceID, ok
}

func (s *AnswerStore) IsAnswered(questionID string) bool {
	_, ok := s.answers[questionID]
	return ok
}

func (s *AnswerStore) Count() int {
	return len(s.answers)
}

// Export returns one entry per answered question in question order.
func (s *AnswerStore) Export() []Answer {
	answers := make([]Answer, 0, len(s.answers))
	for _, questionID := range s.order {
		choiceID, ok := s.answers[questionID]
		if !ok {
			continue
		}
		answers = append(answers, Answer{Question: questionID, Choice: choiceID})
	}
	return answers
}

func (s *AnswerStore) Reset() {
	s.answers = make(map[string]string)
}

// Snapshot returns a copy of the current selections.
func (s *AnswerStore) Snapshot() map[string]string {
	snapshot := make(map[string]string, len(s.answers))
	for questionID, choiceID := range s.answers {
		snapshot[questionID] = choiceID
	}
	return snapshot
}

// Restore applies saved selections and returns how many were accepted.
// Entries naming unknown questions or foreign choices are dropped.
func (s *AnswerStore) Restore(saved map[string]string) int {
	restored := 0
	for questionID, choiceID := range saved {
		if err := s.Set(questionID, choiceID); err != nil {
			continue
		}
		restored++
	}
	return restored
}
