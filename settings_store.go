package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/beevik/etree"
)

// The ambient settings store is one process-wide document addressed by the
// application name. Its location can be forced through the
// <APPNAME>_SETTINGS environment variable; otherwise it lives under the
// user configuration directory.

var (
	appMu   sync.RWMutex
	appName string
)

// SetApplication names the ambient settings store. When never called, the
// executable's base name is used.
func SetApplication(name string) {
	appMu.Lock()
	defer appMu.Unlock()
	appName = name
}

func application() string {
	appMu.RLock()
	defer appMu.RUnlock()
	if appName != "" {
		return appName
	}
	base := filepath.Base(os.Args[0])
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// settingsPath resolves the ambient settings document location.
func settingsPath() (string, error) {
	app := application()
	envVar := strings.ToUpper(strings.ReplaceAll(app, "-", "_")) + "_SETTINGS"
	if p := os.Getenv(envVar); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve settings store for '%s': %w", app, err)
	}
	return filepath.Join(dir, app, app+".config"), nil
}

// settingsStore persists against the ambient application document. The
// active section is cached as a name to value snapshot with lower-cased
// keys, so lookups are case-normalized; the cache is rebuilt on refresh and
// after every flush so subsequent reads observe new values immediately.
type settingsStore struct {
	path    string
	section string
	doc     *document
	sec     *etree.Element
	cache   map[string]string
}

func newSettingsStore(path, section string) *settingsStore {
	return &settingsStore{path: path, section: section}
}

func (s *settingsStore) refresh() error {
	doc, err := openDocument(s.path)
	if err != nil {
		s.doc = newDocument(s.path)
		s.sec = s.doc.ensureSection(s.section)
		s.rebuild()
		return err
	}
	s.doc = doc
	s.sec = doc.ensureSection(s.section)
	s.rebuild()
	return nil
}

func (s *settingsStore) rebuild() {
	entries := s.doc.entries(s.sec)
	s.cache = make(map[string]string, len(entries))
	for key, value := range entries {
		s.cache[strings.ToLower(key)] = value
	}
}

func (s *settingsStore) lookup(key string) (string, bool) {
	value, ok := s.cache[strings.ToLower(key)]
	return value, ok
}

func (s *settingsStore) upsert(key, value string) {
	s.doc.upsert(s.sec, key, value)
	s.cache[strings.ToLower(key)] = value
}

func (s *settingsStore) remove(key string) bool {
	delete(s.cache, strings.ToLower(key))
	return s.doc.remove(s.sec, key)
}

func (s *settingsStore) snapshot() map[string]string {
	return s.doc.entries(s.sec)
}

func (s *settingsStore) flush() error {
	if err := s.doc.save(); err != nil {
		return err
	}
	s.rebuild()
	return nil
}

func (s *settingsStore) location() string {
	return s.path
}
