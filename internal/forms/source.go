package forms

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mindwell-health/practice-platform/internal/config"
)

// Query scopes a rule lookup. ServiceID feeds service-based rules;
// TreatmentTarget feeds target-based rules.
type Query struct {
	TenantID        uuid.UUID
	ServiceID       uuid.UUID
	TreatmentTarget string
}

// RuleSource supplies placement rules for one therapy request. The resolver
// contract is identical across sources; only the lookup key differs.
type RuleSource interface {
	RulesFor(ctx context.Context, q Query) ([]Rule, error)
}

// ModalSource picks between a service-keyed and a treatment-target-keyed
// source according to the configured mode. Auto mode prefers target rules
// when the tenant has any for this client's target, falling back to service
// rules.
type ModalSource struct {
	mode      config.FormRuleMode
	byService RuleSource
	byTarget  RuleSource
}

// NewModalSource builds the mode-aware rule source.
func NewModalSource(mode config.FormRuleMode, byService, byTarget RuleSource) *ModalSource {
	if byService == nil || byTarget == nil {
		panic("forms: both rule sources required")
	}
	return &ModalSource{mode: mode, byService: byService, byTarget: byTarget}
}

func (m *ModalSource) RulesFor(ctx context.Context, q Query) ([]Rule, error) {
	switch m.mode {
	case config.FormRuleModeService:
		return m.byService.RulesFor(ctx, q)
	case config.FormRuleModeTreatmentTarget:
		return m.byTarget.RulesFor(ctx, q)
	default:
		rules, err := m.byTarget.RulesFor(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(rules) > 0 {
			return rules, nil
		}
		return m.byService.RulesFor(ctx, q)
	}
}

// ServiceMemorySource keeps service-keyed rules in memory, for tests.
type ServiceMemorySource struct {
	mu    sync.RWMutex
	rules map[uuid.UUID][]Rule
}

// NewServiceMemorySource creates an empty service-keyed source.
func NewServiceMemorySource() *ServiceMemorySource {
	return &ServiceMemorySource{rules: make(map[uuid.UUID][]Rule)}
}

// Put registers rules for a service.
func (s *ServiceMemorySource) Put(serviceID uuid.UUID, rules ...Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[serviceID] = append(s.rules[serviceID], rules...)
}

func (s *ServiceMemorySource) RulesFor(ctx context.Context, q Query) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Rule(nil), s.rules[q.ServiceID]...), nil
}

// TargetMemorySource keeps treatment-target-keyed rules in memory, for tests.
type TargetMemorySource struct {
	mu    sync.RWMutex
	rules map[string][]Rule
}

// NewTargetMemorySource creates an empty target-keyed source.
func NewTargetMemorySource() *TargetMemorySource {
	return &TargetMemorySource{rules: make(map[string][]Rule)}
}

// Put registers rules for a treatment target label.
func (s *TargetMemorySource) Put(target string, rules ...Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[target] = append(s.rules[target], rules...)
}

func (s *TargetMemorySource) RulesFor(ctx context.Context, q Query) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q.TreatmentTarget == "" {
		return nil, nil
	}
	return append([]Rule(nil), s.rules[q.TreatmentTarget]...), nil
}
