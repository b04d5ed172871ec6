package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/internal/domain/ports"
	"github.com/stagedoor/backend/pkg/errors"
	"github.com/stagedoor/backend/pkg/expression"
	"github.com/stagedoor/backend/pkg/formgraph"
)

// FormService loads published form versions and validates answer maps against
// them. Form versions are immutable, so the cache never invalidates.
type FormService struct {
	forms ports.FormStore
	expr  *expression.Engine

	mu    sync.RWMutex
	cache map[string]*cachedForm
}

type cachedForm struct {
	form  *models.FormVersion
	graph *formgraph.Graph
}

// NewFormService creates a new FormService
func NewFormService(forms ports.FormStore, engine *expression.Engine) *FormService {
	return &FormService{
		forms: forms,
		expr:  engine,
		cache: make(map[string]*cachedForm),
	}
}

// Get returns a form version and its resolved field graph, from cache when
// possible.
func (s *FormService) Get(ctx context.Context, formVersionID string) (*models.FormVersion, *formgraph.Graph, error) {
	s.mu.RLock()
	if entry, ok := s.cache[formVersionID]; ok {
		s.mu.RUnlock()
		return entry.form, entry.graph, nil
	}
	s.mu.RUnlock()

	form, err := s.forms.FindByID(ctx, nil, formVersionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load form version %s: %w", formVersionID, err)
	}
	if form == nil {
		return nil, nil, errors.NewNotFoundError("form version", formVersionID)
	}

	entry := &cachedForm{form: form, graph: formgraph.Resolve(form.Definition)}
	s.mu.Lock()
	s.cache[formVersionID] = entry
	s.mu.Unlock()

	log.Printf("📋 Cached form version %s (%d fields)", formVersionID, len(entry.graph.Fields()))
	return form, entry.graph, nil
}

// Publish stores a new immutable form version.
func (s *FormService) Publish(ctx context.Context, form *models.FormVersion) error {
	if form.Definition == nil {
		return errors.NewValidationError("definition", "form definition is required")
	}
	for _, section := range form.Definition.Sections {
		for _, field := range section.Fields {
			for _, rule := range field.Rules {
				if rule.Condition == "" {
					continue
				}
				if err := s.expr.Validate(rule.Condition); err != nil {
					return errors.NewValidationError(field.Key,
						fmt.Sprintf("invalid rule condition: %v", err))
				}
			}
		}
	}
	return s.forms.Insert(ctx, nil, form)
}

// ValidateAnswers checks a normalized answer map against the form: unknown
// fields are rejected, hidden fields are ignored, and every visible required
// field must carry a non-empty answer. Require rules can make an otherwise
// optional field mandatory.
func (s *FormService) ValidateAnswers(form *models.FormVersion, graph *formgraph.Graph, answers models.AnswerMap) error {
	known := make(map[string]models.FormField)
	for _, field := range graph.Fields() {
		known[graph.Canonical(field.Key)] = field
	}

	for key := range answers {
		if _, ok := known[graph.Canonical(key)]; !ok {
			return errors.NewValidationError(key, "field is not part of this form")
		}
	}

	for _, section := range form.Definition.Sections {
		for _, field := range section.Fields {
			if field.Type.IsInformational() {
				continue
			}
			if !s.fieldVisible(field, answers) {
				continue
			}
			if s.fieldRequired(field, answers) && isEmptyAnswer(answers[field.Key]) {
				return errors.NewValidationError(field.Key, "answer is required")
			}
		}
	}
	return nil
}

// FileRefs collects the uploaded-file ids referenced by file-typed answers.
// Hidden fields contribute nothing.
func (s *FormService) FileRefs(form *models.FormVersion, answers models.AnswerMap) []string {
	var ids []string
	for _, section := range form.Definition.Sections {
		for _, field := range section.Fields {
			if field.Type != models.FieldTypeFile || !s.fieldVisible(field, answers) {
				continue
			}
			ids = append(ids, fileIDsFromAnswer(answers[field.Key])...)
		}
	}
	return ids
}

func (s *FormService) fieldVisible(field models.FormField, answers models.AnswerMap) bool {
	for _, rule := range field.Rules {
		if rule.Kind != "show" {
			continue
		}
		if !s.ruleSatisfied(rule, answers) {
			return false
		}
	}
	return true
}

func (s *FormService) fieldRequired(field models.FormField, answers models.AnswerMap) bool {
	if field.Required {
		return true
	}
	for _, rule := range field.Rules {
		if rule.Kind == "require" && s.ruleSatisfied(rule, answers) {
			return true
		}
	}
	return false
}

// ruleSatisfied evaluates one conditional rule. With a condition expression
// the expression decides; without one the rule fires once every referenced
// field holds a non-empty answer. Evaluation errors fail closed.
func (s *FormService) ruleSatisfied(rule models.FieldRule, answers models.AnswerMap) bool {
	if rule.Condition != "" {
		ok, err := s.expr.EvaluateCondition(rule.Condition, answers)
		if err != nil {
			log.Printf("⚠️ Rule condition %q failed to evaluate: %v", rule.Condition, err)
			return false
		}
		return ok
	}
	for _, ref := range rule.Fields {
		if isEmptyAnswer(answers[ref]) {
			return false
		}
	}
	return true
}

func isEmptyAnswer(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	}
	return false
}

// fileIDsFromAnswer extracts file object ids from the shapes clients send:
// a bare id string, a list of ids, or {file_object_id: ...} objects.
func fileIDsFromAnswer(v any) []string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return []string{t}
		}
	case map[string]any:
		if id, ok := t["file_object_id"].(string); ok && id != "" {
			return []string{id}
		}
	case []any:
		var ids []string
		for _, item := range t {
			ids = append(ids, fileIDsFromAnswer(item)...)
		}
		return ids
	}
	return nil
}
