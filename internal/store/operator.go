package store

import (
	"fmt"
	"strings"

	"sprayDispatch/models"
)

// Login opens the operator session: the profile template merged with phone.
// A second login replaces the current session.
func (s *Store) Login(phone string) (models.Operator, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return models.Operator{}, fmt.Errorf("%w: phone is required", models.ErrValidation)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	op := s.template.Clone()
	op.Phone = phone
	s.mu.Lock()
	s.operator = &op
	s.mu.Unlock()

	out := op.Clone()
	s.publish(Change{Kind: ChangeOperator, Operator: &out, At: s.now()})
	return op.Clone(), nil
}

// Logout closes the session. It is a no-op when nobody is logged in.
func (s *Store) Logout() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	had := s.operator != nil
	s.operator = nil
	s.mu.Unlock()
	if had {
		s.publish(Change{Kind: ChangeOperator, At: s.now()})
	}
}

// Operator returns the current operator.
func (s *Store) Operator() (models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.operator == nil {
		return models.Operator{}, models.ErrNotAuthenticated
	}
	return s.operator.Clone(), nil
}

// UpdateOperator applies a partial profile update to the current operator.
func (s *Store) UpdateOperator(p models.OperatorPatch) (models.Operator, error) {
	if err := s.validate.Struct(p); err != nil {
		return models.Operator{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.operator == nil {
		s.mu.Unlock()
		return models.Operator{}, models.ErrNotAuthenticated
	}
	op := p.ApplyTo(*s.operator)
	s.operator = &op
	s.mu.Unlock()

	out := op.Clone()
	s.publish(Change{Kind: ChangeOperator, Operator: &out, At: s.now()})
	return op.Clone(), nil
}
