// Package editor holds the rich-text editing surface and its formatting commands.
package editor

import (
	"crosssync/pkg/domain"
	"sync"
)

type ChangeFunc func(html string, st domain.Stats)

// Surface owns the live document and reports every change with fresh stats.
type Surface struct {
	mu       sync.Mutex
	f        Formatter
	onChange ChangeFunc
}

func NewSurface(f Formatter, onChange ChangeFunc) *Surface {
	if onChange == nil {
		onChange = func(string, domain.Stats) {}
	}
	return &Surface{f: f, onChange: onChange}
}

// SetContent replaces the document with user input.
func (s *Surface) SetContent(html string) {
	s.mu.Lock()
	s.f.Reset(html)
	cur := s.f.HTML()
	s.mu.Unlock()
	s.onChange(cur, domain.ComputeStats(cur))
}

// Exec runs c through the formatter and reports the result as a change.
func (s *Surface) Exec(c Command) error {
	s.mu.Lock()
	if err := Apply(s.f, c); err != nil {
		s.mu.Unlock()
		return err
	}
	cur := s.f.HTML()
	s.mu.Unlock()
	s.onChange(cur, domain.ComputeStats(cur))
	return nil
}

func (s *Surface) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.HTML()
}

func (s *Surface) Stats() domain.Stats {
	return domain.ComputeStats(s.HTML())
}
