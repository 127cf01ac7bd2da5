package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/auditkit/internal/model"
)

var (
	// ErrTemplateLocked is returned when a structural mutation targets a
	// locked published template.
	ErrTemplateLocked = errors.New("template is locked")
	// ErrTemplateArchived is returned for any mutation of an archived
	// template; archiving is terminal.
	ErrTemplateArchived = errors.New("template is archived")
	// ErrInvalidTransition is returned for lifecycle moves outside
	// draft -> published -> archived.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

// NotPublishableError wraps the validation result that blocked publishing.
type NotPublishableError struct {
	Result ValidationResult
}

func (e *NotPublishableError) Error() string {
	return fmt.Sprintf("template failed validation with %d error(s)", len(e.Result.Errors))
}

// EnsureMutable reports whether structural mutation is currently permitted:
// freely in draft, in published only while unlocked, never in archived.
func EnsureMutable(t *model.Template) error {
	switch t.State {
	case model.StateArchived:
		return ErrTemplateArchived
	case model.StatePublished:
		if t.Locked {
			return ErrTemplateLocked
		}
	}
	return nil
}

// Publish transitions a draft template to published. The template must pass
// validation first; its version string becomes a historical record from this
// point on (callers bump the version on later edits, the engine does not).
func Publish(t *model.Template) error {
	switch t.State {
	case model.StateArchived:
		return ErrTemplateArchived
	case model.StatePublished:
		return fmt.Errorf("%w: template is already published", ErrInvalidTransition)
	}
	if result := Validate(t); !result.OK {
		return &NotPublishableError{Result: result}
	}
	t.State = model.StatePublished
	t.UpdatedAt = time.Now()
	return nil
}

// Archive transitions a published template to archived. Irreversible.
func Archive(t *model.Template) error {
	switch t.State {
	case model.StateArchived:
		return fmt.Errorf("%w: template is already archived", ErrInvalidTransition)
	case model.StateDraft:
		return fmt.Errorf("%w: only published templates can be archived", ErrInvalidTransition)
	}
	t.State = model.StateArchived
	t.UpdatedAt = time.Now()
	return nil
}

// SetLocked toggles the lock flag. Locking only applies to published
// templates; a locked template rejects structural mutation until unlocked.
func SetLocked(t *model.Template, locked bool) error {
	switch t.State {
	case model.StateArchived:
		return ErrTemplateArchived
	case model.StateDraft:
		return fmt.Errorf("%w: only published templates can be locked", ErrInvalidTransition)
	}
	t.Locked = locked
	t.UpdatedAt = time.Now()
	return nil
}

// AddSection appends a section, assigning the next ordering index.
func AddSection(t *model.Template, sec model.Section) error {
	if err := EnsureMutable(t); err != nil {
		return err
	}
	if sec.Order == 0 {
		maxOrder := 0
		for _, s := range t.Sections {
			if s.Order > maxOrder {
				maxOrder = s.Order
			}
		}
		sec.Order = maxOrder + 1
	}
	t.Sections = append(t.Sections, sec)
	t.UpdatedAt = time.Now()
	return nil
}

// RemoveSection removes a section and every question it owns.
func RemoveSection(t *model.Template, sectionID string) error {
	if err := EnsureMutable(t); err != nil {
		return err
	}
	for i, s := range t.Sections {
		if s.ID == sectionID {
			t.Sections = append(t.Sections[:i], t.Sections[i+1:]...)
			t.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("section %q not found", sectionID)
}

// AddQuestion appends a question to the named section.
func AddQuestion(t *model.Template, sectionID string, q model.Question) error {
	if err := EnsureMutable(t); err != nil {
		return err
	}
	sec := t.FindSection(sectionID)
	if sec == nil {
		return fmt.Errorf("section %q not found", sectionID)
	}
	sec.Questions = append(sec.Questions, q)
	t.UpdatedAt = time.Now()
	return nil
}

// RemoveQuestion removes a question from whichever section owns it.
func RemoveQuestion(t *model.Template, questionID string) error {
	if err := EnsureMutable(t); err != nil {
		return err
	}
	for si := range t.Sections {
		sec := &t.Sections[si]
		for qi, q := range sec.Questions {
			if q.ID == questionID {
				sec.Questions = append(sec.Questions[:qi], sec.Questions[qi+1:]...)
				t.UpdatedAt = time.Now()
				return nil
			}
		}
	}
	return fmt.Errorf("question %q not found", questionID)
}

// SetScoringMethod changes the aggregation method.
func SetScoringMethod(t *model.Template, method model.ScoringMethod) error {
	if err := EnsureMutable(t); err != nil {
		return err
	}
	t.ScoringMethod = method
	t.UpdatedAt = time.Now()
	return nil
}
