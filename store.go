package settings

import (
	"errors"

	"github.com/beevik/etree"
)

// store is the persistence strategy behind a Provider. Implementations are
// not safe for concurrent use; the Provider guards access.
type store interface {
	// refresh reloads the backing document so subsequent lookups observe
	// its current state. When the document is absent or unparseable, a
	// fresh minimal document replaces it and refresh reports
	// ErrStoreNotFound so the caller can seed it.
	refresh() error
	// lookup returns the persisted string for a key.
	lookup(key string) (string, bool)
	// upsert overwrites or appends the entry for a key.
	upsert(key, value string)
	// remove deletes the entry for a key, reporting whether it existed.
	remove(key string) bool
	// snapshot returns a copy of the active section's entries.
	snapshot() map[string]string
	// flush persists pending mutations to the backing document.
	flush() error
	// location is the backing document's file path.
	location() string
}

// fileStore persists against an arbitrary document path. Keys are matched
// by exact member name.
type fileStore struct {
	path    string
	section string
	doc     *document
	sec     *etree.Element
}

func newFileStore(path, section string) *fileStore {
	return &fileStore{path: path, section: section}
}

func (s *fileStore) refresh() error {
	doc, err := openDocument(s.path)
	if err != nil {
		s.doc = newDocument(s.path)
		s.sec = s.doc.ensureSection(s.section)
		return err
	}
	s.doc = doc
	s.sec = doc.ensureSection(s.section)
	return nil
}

func (s *fileStore) lookup(key string) (string, bool) {
	return s.doc.value(s.sec, key)
}

func (s *fileStore) upsert(key, value string) {
	s.doc.upsert(s.sec, key, value)
}

func (s *fileStore) remove(key string) bool {
	return s.doc.remove(s.sec, key)
}

func (s *fileStore) snapshot() map[string]string {
	return s.doc.entries(s.sec)
}

func (s *fileStore) flush() error {
	return s.doc.save()
}

func (s *fileStore) location() string {
	return s.path
}

// ensureLoaded refreshes the store, tolerating an absent or unparseable
// document: refresh installs a fresh minimal one in that case.
func ensureLoaded(s store) error {
	err := s.refresh()
	if err != nil && !errors.Is(err, ErrStoreNotFound) {
		return err
	}
	return nil
}
