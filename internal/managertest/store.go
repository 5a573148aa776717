package managertest

import (
	"strconv"
	"sync"
	"time"

	"jrm/pkg/rules"
)

// store keeps rules in insertion order. Cursors are decimal offsets into
// that order.
type store struct {
	mu        sync.RWMutex
	order     []string
	byID      map[string]rules.Rule
	timestamp int64
	now       func() time.Time
}

func newStore(now func() time.Time) *store {
	return &store{
		byID:      make(map[string]rules.Rule),
		now:       now,
		timestamp: now().Unix(),
	}
}

func (s *store) put(rule rules.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[rule.ID]; !exists {
		s.order = append(s.order, rule.ID)
	}
	s.byID[rule.ID] = rule
	s.timestamp = s.now().Unix()
}

func (s *store) get(id string) (rules.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.byID[id]
	return rule, ok
}

func (s *store) remove(id string) (rules.Rule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.byID[id]
	if !ok {
		return rules.Rule{}, false
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.timestamp = s.now().Unix()
	return rule, true
}

func (s *store) ruleSet() rules.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]rules.Rule, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.byID[id])
	}
	return rules.RuleSet{Rules: list, Timestamp: s.timestamp}
}

// page returns up to limit rules starting at offset and the cursor of the
// next page, nil when nothing follows.
func (s *store) page(offset, limit int) ([]rules.Rule, *string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.order) {
		return []rules.Rule{}, nil
	}
	end := offset + limit
	if end > len(s.order) {
		end = len(s.order)
	}

	list := make([]rules.Rule, 0, end-offset)
	for _, id := range s.order[offset:end] {
		list = append(list, s.byID[id])
	}
	if end == len(s.order) {
		return list, nil
	}
	return list, rules.Cursor(strconv.Itoa(end))
}

func (s *store) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
