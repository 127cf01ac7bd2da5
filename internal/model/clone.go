package model

import (
	"time"

	"github.com/google/uuid"
)

// Clone deep-copies the template with freshly generated identifiers for the
// template and every owned section, question, and option. Conditional rules
// are remapped to the new question IDs so the copy stays self-contained.
// The copy starts a new life: draft state, unlocked, fresh timestamps.
func (t *Template) Clone() *Template {
	now := time.Now()
	cp := *t
	cp.ID = uuid.NewString()
	cp.State = StateDraft
	cp.Locked = false
	cp.CreatedAt = now
	cp.UpdatedAt = now
	cp.Standards = append([]string(nil), t.Standards...)

	idMap := make(map[string]string)
	cp.Sections = make([]Section, len(t.Sections))
	for i := range t.Sections {
		cp.Sections[i] = cloneSection(&t.Sections[i], idMap)
	}
	for si := range cp.Sections {
		for qi := range cp.Sections[si].Questions {
			q := &cp.Sections[si].Questions[qi]
			if q.Condition == nil {
				continue
			}
			if newID, ok := idMap[q.Condition.QuestionID]; ok {
				q.Condition.QuestionID = newID
			}
		}
	}
	return &cp
}

// CloneSection deep-copies one section for duplication inside the same
// template. Rule references to questions outside the section are preserved.
func (s *Section) CloneSection() Section {
	idMap := make(map[string]string)
	cp := cloneSection(s, idMap)
	for qi := range cp.Questions {
		q := &cp.Questions[qi]
		if q.Condition == nil {
			continue
		}
		if newID, ok := idMap[q.Condition.QuestionID]; ok {
			q.Condition.QuestionID = newID
		}
	}
	return cp
}

func cloneSection(s *Section, idMap map[string]string) Section {
	cp := *s
	cp.ID = uuid.NewString()
	cp.Questions = make([]Question, len(s.Questions))
	for i := range s.Questions {
		cp.Questions[i] = cloneQuestion(&s.Questions[i], idMap)
	}
	return cp
}

func cloneQuestion(q *Question, idMap map[string]string) Question {
	cp := *q
	cp.ID = uuid.NewString()
	idMap[q.ID] = cp.ID
	cp.Tags = append([]string(nil), q.Tags...)
	cp.Options = make([]Option, len(q.Options))
	for i, o := range q.Options {
		o.ID = uuid.NewString()
		cp.Options[i] = o
	}
	if q.Condition != nil {
		c := *q.Condition
		cp.Condition = &c
	}
	return cp
}

// EnsureIDs fills in missing identifiers across the template tree. Used when
// templates arrive from seed files or API clients that omit IDs.
func (t *Template) EnsureIDs() {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	for si := range t.Sections {
		sec := &t.Sections[si]
		if sec.ID == "" {
			sec.ID = uuid.NewString()
		}
		for qi := range sec.Questions {
			q := &sec.Questions[qi]
			if q.ID == "" {
				q.ID = uuid.NewString()
			}
			for oi := range q.Options {
				if q.Options[oi].ID == "" {
					q.Options[oi].ID = uuid.NewString()
				}
			}
		}
	}
}
