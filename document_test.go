package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestOpenDocument(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		_, err := openDocument(filepath.Join(t.TempDir(), "absent.config"))
		assert.ErrorIs(t, err, ErrStoreNotFound)
	})

	t.Run("Corrupt", func(t *testing.T) {
		path := writeTestDoc(t, "<<<< not xml")
		_, err := openDocument(path)
		assert.ErrorIs(t, err, ErrStoreNotFound)
	})

	t.Run("Empty", func(t *testing.T) {
		path := writeTestDoc(t, "")
		_, err := openDocument(path)
		assert.ErrorIs(t, err, ErrStoreNotFound)
	})

	t.Run("Valid", func(t *testing.T) {
		path := writeTestDoc(t, `<configuration><appSettings/></configuration>`)
		doc, err := openDocument(path)
		require.NoError(t, err)
		assert.Equal(t, "", doc.prefix)
		assert.NotNil(t, doc.section(DefaultSection))
	})
}

func TestSectionAutoVivify(t *testing.T) {
	doc := newDocument(filepath.Join(t.TempDir(), "new.config"))

	t.Run("DefaultSectionHasNoDeclaration", func(t *testing.T) {
		sec := doc.ensureSection(DefaultSection)
		require.NotNil(t, sec)
		assert.Nil(t, doc.child(doc.root, headerName))
	})

	t.Run("NamedSectionIsDeclared", func(t *testing.T) {
		sec := doc.ensureSection("service")
		require.NotNil(t, sec)

		header := doc.child(doc.root, headerName)
		require.NotNil(t, header)

		// The header must be the root's first child element.
		children := doc.root.ChildElements()
		require.NotEmpty(t, children)
		assert.Equal(t, headerName, children[0].Tag)

		decls := header.ChildElements()
		require.Len(t, decls, 1)
		assert.Equal(t, "service", decls[0].SelectAttrValue("name", ""))
		assert.Equal(t, declHandler, decls[0].SelectAttrValue("type", ""))
		assert.Equal(t, declOverride, decls[0].SelectAttrValue("allowOverride", ""))
	})

	t.Run("EnsureIsIdempotent", func(t *testing.T) {
		doc.ensureSection("service")
		doc.ensureSection("service")

		header := doc.child(doc.root, headerName)
		assert.Len(t, header.ChildElements(), 1)

		count := 0
		for _, el := range doc.root.ChildElements() {
			if el.Tag == "service" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})
}

func TestEntryUpsert(t *testing.T) {
	doc := newDocument(filepath.Join(t.TempDir(), "new.config"))
	sec := doc.ensureSection(DefaultSection)

	doc.upsert(sec, "Name", "first")
	doc.upsert(sec, "Name", "second")
	doc.upsert(sec, "Other", "x")

	value, ok := doc.value(sec, "Name")
	require.True(t, ok)
	assert.Equal(t, "second", value)

	// Overwrite happened in place, no duplicate entry.
	assert.Len(t, sec.ChildElements(), 2)

	assert.True(t, doc.remove(sec, "Other"))
	assert.False(t, doc.remove(sec, "Other"))
	_, ok = doc.value(sec, "Other")
	assert.False(t, ok)
}

func TestKeyCaseIsExactInDocument(t *testing.T) {
	doc := newDocument(filepath.Join(t.TempDir(), "new.config"))
	sec := doc.ensureSection(DefaultSection)
	doc.upsert(sec, "Name", "svc")

	_, ok := doc.value(sec, "name")
	assert.False(t, ok)
}

func TestNamespaceContext(t *testing.T) {
	const prefixed = `<?xml version="1.0"?>
<cfg:configuration xmlns:cfg="urn:example:settings">
  <cfg:appSettings>
    <cfg:add key="Name" value="svc"/>
  </cfg:appSettings>
</cfg:configuration>`

	path := writeTestDoc(t, prefixed)
	doc, err := openDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "cfg", doc.prefix)

	sec := doc.section(DefaultSection)
	require.NotNil(t, sec)

	value, ok := doc.value(sec, "Name")
	require.True(t, ok)
	assert.Equal(t, "svc", value)

	// Creations resolve through the same prefix.
	doc.upsert(sec, "Added", "x")
	doc.ensureSection("service")
	require.NoError(t, doc.save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, `<cfg:add key="Added" value="x"/>`)
	assert.Contains(t, content, "<cfg:service")
	assert.Contains(t, content, "<cfg:configSections")
}

func TestSaveAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "app.config")

	doc := newDocument(path)
	sec := doc.ensureSection(DefaultSection)
	doc.upsert(sec, "Name", "svc")
	require.NoError(t, doc.save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `key="Name"`)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"))
	}
}
