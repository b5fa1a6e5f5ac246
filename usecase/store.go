package usecase

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/elliotchance/orderedmap"
	"github.com/sirupsen/logrus"
)

// Version is a published usecase and its per-name sequence number.
type Version struct {
	Number  int
	Usecase *Usecase
}

type named struct {
	latest atomic.Pointer[Version]
	// version number -> *Usecase, oldest first
	versions *orderedmap.OrderedMap
	next     int
}

// Store publishes usecases by name. Readers always get a complete usecase;
// a superseded usecase stays usable for as long as a caller holds it.
type Store struct {
	mu    sync.RWMutex
	names map[string]*named
}

func NewStore() *Store {
	return &Store{names: make(map[string]*named)}
}

// Set publishes u as the newest version of name and drops versions beyond
// the newest versionCount. A nil usecase or a zero versionCount removes
// every version of name.
func (s *Store) Set(name string, u *Usecase, versionCount int) (int, error) {
	if versionCount < 0 {
		return 0, fmt.Errorf("negative version count %d for %q", versionCount, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if u == nil || versionCount == 0 {
		delete(s.names, name)
		logrus.WithField("usecase", name).Info("Removed all versions")
		return 0, nil
	}
	n, ok := s.names[name]
	if !ok {
		n = &named{versions: orderedmap.NewOrderedMap()}
		s.names[name] = n
	}
	n.next++
	v := &Version{Number: n.next, Usecase: u}
	n.versions.Set(v.Number, u)
	for n.versions.Len() > versionCount {
		n.versions.Delete(n.versions.Front().Key)
	}
	n.latest.Store(v)
	logrus.WithFields(logrus.Fields{"usecase": name, "version": v.Number, "retained": n.versions.Len()}).Info("Published usecase")
	return v.Number, nil
}

func (s *Store) lookup(name string) *named {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[name]
}

// Get returns the latest version of name.
func (s *Store) Get(name string) (*Version, bool) {
	n := s.lookup(name)
	if n == nil {
		return nil, false
	}
	v := n.latest.Load()
	return v, v != nil
}

// GetVersion returns a retained version of name.
func (s *Store) GetVersion(name string, version int) (*Usecase, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.names[name]
	if !ok {
		return nil, false
	}
	u, ok := n.versions.Get(version)
	if !ok {
		return nil, false
	}
	return u.(*Usecase), true
}

// Versions lists the retained version numbers of name, oldest first.
func (s *Store) Versions(name string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.names[name]
	if !ok {
		return nil
	}
	var out []int
	for e := n.versions.Front(); e != nil; e = e.Next() {
		out = append(out, e.Key.(int))
	}
	return out
}

func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.names))
	for name := range s.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
