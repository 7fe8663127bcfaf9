package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
)

// Document structure constants. The persisted form is one root element, an
// optional configSections header declaring non-default sections, one child
// element per section, and <add key="..." value="..."/> entries inside each
// section.
const (
	rootName      = "configuration"
	headerName    = "configSections"
	declName      = "section"
	entryName     = "add"
	keyAttr       = "key"
	valueAttr     = "value"
	declHandler   = "key-value"
	declOverride  = "true"
	indentSpaces  = 2
	documentPerms = 0644
)

// DefaultSection is the section used when Options.Section is empty.
const DefaultSection = "appSettings"

// document wraps a parsed settings tree together with the namespace prefix
// context derived once from its root element. Structural lookups and
// creations all resolve through that context, so documents with and without
// a declared namespace behave identically.
type document struct {
	tree   *etree.Document
	root   *etree.Element
	prefix string
	path   string
}

// openDocument loads the settings document at path. The caller decides how
// to recover from a missing or unparseable file.
func openDocument(path string) (*document, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreNotFound, err)
	}
	root := tree.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: document '%s' has no root element", ErrStoreNotFound, path)
	}
	return &document{tree: tree, root: root, prefix: root.Space, path: path}, nil
}

// newDocument starts a fresh minimal document for path, with an empty root
// and no namespace.
func newDocument(path string) *document {
	tree := etree.NewDocument()
	tree.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := tree.CreateElement(rootName)
	return &document{tree: tree, root: root, path: path}
}

// qualify prepends the document's namespace prefix to a structural name.
func (d *document) qualify(name string) string {
	if d.prefix == "" {
		return name
	}
	return d.prefix + ":" + name
}

// child finds a direct child element by local name within the document's
// namespace context.
func (d *document) child(parent *etree.Element, name string) *etree.Element {
	for _, el := range parent.ChildElements() {
		if el.Tag == name && el.Space == d.prefix {
			return el
		}
	}
	return nil
}

// section returns the named section element, or nil when absent.
func (d *document) section(name string) *etree.Element {
	return d.child(d.root, name)
}

// ensureSection returns the named section element, creating it when absent.
// A non-default section also gets its declaration in the configSections
// header the first time it is created.
func (d *document) ensureSection(name string) *etree.Element {
	if el := d.child(d.root, name); el != nil {
		return el
	}
	if name != DefaultSection {
		d.declareSection(name)
	}
	el := etree.NewElement(d.qualify(name))
	d.root.AddChild(el)
	return el
}

// declareSection registers a non-default section in the configSections
// header, inserting the header as the root's first child when missing.
func (d *document) declareSection(name string) {
	header := d.child(d.root, headerName)
	if header == nil {
		header = etree.NewElement(d.qualify(headerName))
		d.root.InsertChildAt(0, header)
	}
	for _, decl := range header.ChildElements() {
		if decl.SelectAttrValue("name", "") == name {
			return
		}
	}
	decl := header.CreateElement(d.qualify(declName))
	decl.CreateAttr("name", name)
	decl.CreateAttr("type", declHandler)
	decl.CreateAttr("allowOverride", declOverride)
}

// entry finds the entry element with the given key inside a section.
func (d *document) entry(section *etree.Element, key string) *etree.Element {
	for _, el := range section.ChildElements() {
		if el.Tag == entryName && el.Space == d.prefix && el.SelectAttrValue(keyAttr, "") == key {
			return el
		}
	}
	return nil
}

// value returns the string value stored under key in a section.
func (d *document) value(section *etree.Element, key string) (string, bool) {
	el := d.entry(section, key)
	if el == nil {
		return "", false
	}
	return el.SelectAttrValue(valueAttr, ""), true
}

// upsert overwrites the entry for key in place, appending a new entry
// element when none exists yet.
func (d *document) upsert(section *etree.Element, key, value string) {
	if el := d.entry(section, key); el != nil {
		el.CreateAttr(valueAttr, value)
		return
	}
	el := section.CreateElement(d.qualify(entryName))
	el.CreateAttr(keyAttr, key)
	el.CreateAttr(valueAttr, value)
}

// remove deletes the entry for key from a section, reporting whether an
// entry was present.
func (d *document) remove(section *etree.Element, key string) bool {
	el := d.entry(section, key)
	if el == nil {
		return false
	}
	section.RemoveChild(el)
	return true
}

// entries returns a key to value snapshot of a section.
func (d *document) entries(section *etree.Element) map[string]string {
	snap := make(map[string]string)
	if section == nil {
		return snap
	}
	for _, el := range section.ChildElements() {
		if el.Tag != entryName || el.Space != d.prefix {
			continue
		}
		if key := el.SelectAttrValue(keyAttr, ""); key != "" {
			snap[key] = el.SelectAttrValue(valueAttr, "")
		}
	}
	return snap
}

// save persists the document atomically to its path.
func (d *document) save() error {
	d.tree.Indent(indentSpaces)
	data, err := d.tree.WriteToBytes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	if err := atomicWriteFile(d.path, data); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

// atomicWriteFile writes data through a temporary file in the target
// directory and renames it into place, so readers never observe a partial
// document.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // Clean up on any error

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, documentPerms); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
