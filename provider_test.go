package settings

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
)

func init() {
	RegisterEnum(map[string]logLevel{
		"debug": levelDebug,
		"info":  levelInfo,
		"warn":  levelWarn,
	})
}

type serviceConfig struct {
	Base

	Name    string
	Retries int
	Small   int16
	Wide    int64
	Ratio   float64
	Narrow  float32
	Flag    bool
	Level   logLevel
	When    time.Time
	ID      uuid.UUID
	Timeout time.Duration
	MaxBody *int64
	Payload []byte
	Tags    []string
	Ports   []int
	Empty   []string
}

func sampleConfig() serviceConfig {
	limit := int64(1 << 20)
	return serviceConfig{
		Name:    "svc",
		Retries: 5,
		Small:   -3,
		Wide:    1 << 40,
		Ratio:   2.5,
		Narrow:  0.25,
		Flag:    true,
		Level:   levelWarn,
		When:    time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		ID:      uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479"),
		Timeout: 90 * time.Second,
		MaxBody: &limit,
		Payload: []byte{0xde, 0xad, 0xbe, 0xef},
		Tags:    []string{"a", "b"},
		Ports:   []int{8080, 8081, 8082},
		Empty:   []string{},
	}
}

func newFileProvider(t *testing.T, section string) (*Provider, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.config")
	p, err := New(Options{File: path, Section: section})
	require.NoError(t, err)
	return p, path
}

func TestRoundTrip(t *testing.T) {
	p, _ := newFileProvider(t, "service")

	src := sampleConfig()
	require.NoError(t, p.Write(&src))

	var dst serviceConfig
	require.NoError(t, p.Read(&dst))

	assert.Equal(t, src.Name, dst.Name)
	assert.Equal(t, src.Retries, dst.Retries)
	assert.Equal(t, src.Small, dst.Small)
	assert.Equal(t, src.Wide, dst.Wide)
	assert.Equal(t, src.Ratio, dst.Ratio)
	assert.Equal(t, src.Narrow, dst.Narrow)
	assert.Equal(t, src.Flag, dst.Flag)
	assert.Equal(t, src.Level, dst.Level)
	assert.True(t, src.When.Equal(dst.When))
	assert.Equal(t, src.ID, dst.ID)
	assert.Equal(t, src.Timeout, dst.Timeout)
	require.NotNil(t, dst.MaxBody)
	assert.Equal(t, *src.MaxBody, *dst.MaxBody)
	assert.Equal(t, src.Payload, dst.Payload)
	assert.Equal(t, src.Tags, dst.Tags)
	assert.Equal(t, src.Ports, dst.Ports)
	assert.Len(t, dst.Empty, 0)
	assert.Empty(t, dst.LastError)
	assert.Same(t, p, dst.Provider)
}

func TestRoundTripNullSurvives(t *testing.T) {
	p, _ := newFileProvider(t, "service")

	src := sampleConfig()
	src.MaxBody = nil
	require.NoError(t, p.Write(&src))

	limit := int64(7)
	dst := serviceConfig{MaxBody: &limit}
	require.NoError(t, p.Read(&dst))
	assert.Nil(t, dst.MaxBody)
}

func TestReadSeedsMissingStore(t *testing.T) {
	p, path := newFileProvider(t, "service")

	cfg := serviceConfig{Name: "app", Retries: 3, Tags: []string{"x"}}
	require.NoError(t, p.Read(&cfg))

	// Defaults stand.
	assert.Equal(t, "app", cfg.Name)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, []string{"x"}, cfg.Tags)

	// The store was created and seeded.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, `key="Name" value="app"`)
	assert.Contains(t, content, `key="Retries" value="3"`)
	assert.Contains(t, content, `key="Tags1" value="x"`)
}

func TestReadSeedsCorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config")
	require.NoError(t, os.WriteFile(path, []byte("{{{{ definitely not xml"), 0644))

	p, err := New(Options{File: path, Section: "service"})
	require.NoError(t, err)

	cfg := serviceConfig{Name: "app", Retries: 3}
	require.NoError(t, p.Read(&cfg))
	assert.Equal(t, "app", cfg.Name)

	doc, err := openDocument(path)
	require.NoError(t, err)
	assert.NotNil(t, doc.section("service"))
}

func TestSelfHeal(t *testing.T) {
	const partial = `<configuration>
  <configSections>
    <section name="service" type="key-value" allowOverride="true"/>
  </configSections>
  <service>
    <add key="Name" value="fromstore"/>
  </service>
</configuration>`

	path := filepath.Join(t.TempDir(), "app.config")
	require.NoError(t, os.WriteFile(path, []byte(partial), 0644))

	p, err := New(Options{File: path, Section: "service"})
	require.NoError(t, err)

	cfg := serviceConfig{Name: "default", Retries: 9}
	require.NoError(t, p.Read(&cfg))

	// Present key wins, absent keys keep their defaults.
	assert.Equal(t, "fromstore", cfg.Name)
	assert.Equal(t, 9, cfg.Retries)

	// The store now contains every field.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, `key="Retries" value="9"`)
	assert.Contains(t, content, `key="Flag" value="false"`)

	// A second read needs no healing and sees the same values.
	var again serviceConfig
	require.NoError(t, p.Read(&again))
	assert.Equal(t, "fromstore", again.Name)
	assert.Equal(t, 9, again.Retries)
}

func TestSequenceIndexing(t *testing.T) {
	t.Run("WriteProducesIndexedKeys", func(t *testing.T) {
		p, path := newFileProvider(t, "service")
		src := sampleConfig()
		require.NoError(t, p.Write(&src))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		content := string(raw)
		assert.Contains(t, content, `key="Ports1" value="8080"`)
		assert.Contains(t, content, `key="Ports2" value="8081"`)
		assert.Contains(t, content, `key="Ports3" value="8082"`)
		assert.NotContains(t, content, `key="Ports4"`)
	})

	t.Run("ReadStopsAtFirstGap", func(t *testing.T) {
		// Tags4 is unreachable: probing stops at the missing Tags3.
		const gapped = `<configuration>
  <appSettings>
    <add key="Tags1" value="a"/>
    <add key="Tags2" value="b"/>
    <add key="Tags4" value="orphan"/>
  </appSettings>
</configuration>`
		path := filepath.Join(t.TempDir(), "app.config")
		require.NoError(t, os.WriteFile(path, []byte(gapped), 0644))

		p, err := New(Options{File: path})
		require.NoError(t, err)

		var cfg struct {
			Base
			Tags []string
		}
		require.NoError(t, p.Read(&cfg))
		assert.Equal(t, []string{"a", "b"}, cfg.Tags)
	})

	t.Run("ShorterWritePrunesOrphans", func(t *testing.T) {
		p, path := newFileProvider(t, "service")

		src := sampleConfig()
		require.NoError(t, p.Write(&src)) // Ports1..3

		src.Ports = []int{9090}
		require.NoError(t, p.Write(&src))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		content := string(raw)
		assert.Contains(t, content, `key="Ports1" value="9090"`)
		assert.NotContains(t, content, `key="Ports2"`)
		assert.NotContains(t, content, `key="Ports3"`)
	})
}

func TestIdempotentUpsert(t *testing.T) {
	p, path := newFileProvider(t, "service")

	src := sampleConfig()
	require.NoError(t, p.Write(&src))
	require.NoError(t, p.Write(&src))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Equal(t, 1, strings.Count(content, `key="Name"`))
	assert.Equal(t, 1, strings.Count(content, `key="Ports1"`))
	assert.Equal(t, 1, strings.Count(content, `<service>`))
}

func TestNamespaceAgnosticProvider(t *testing.T) {
	plain := `<configuration>
  <appSettings>
    <add key="Name" value="svc"/>
    <add key="Retries" value="5"/>
  </appSettings>
</configuration>`
	prefixed := `<cfg:configuration xmlns:cfg="urn:example:settings">
  <cfg:appSettings>
    <cfg:add key="Name" value="svc"/>
    <cfg:add key="Retries" value="5"/>
  </cfg:appSettings>
</cfg:configuration>`

	for name, content := range map[string]string{"Plain": plain, "Prefixed": prefixed} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "app.config")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			p, err := New(Options{File: path})
			require.NoError(t, err)

			var cfg struct {
				Base
				Name    string
				Retries int
			}
			require.NoError(t, p.Read(&cfg))
			assert.Equal(t, "svc", cfg.Name)
			assert.Equal(t, 5, cfg.Retries)

			cfg.Retries = 6
			require.NoError(t, p.Write(&cfg))

			var again struct {
				Base
				Name    string
				Retries int
			}
			require.NoError(t, p.Read(&again))
			assert.Equal(t, 6, again.Retries)
		})
	}
}

func TestConcreteScenario(t *testing.T) {
	// Empty store, {Name: "app", Retries: 3, Tags: []}, write
	// {Name: "svc", Retries: 5, Tags: ["a","b"]}.
	p, path := newFileProvider(t, "")

	type appConfig struct {
		Base
		Name    string
		Retries int
		Tags    []string
	}

	src := appConfig{Name: "svc", Retries: 5, Tags: []string{"a", "b"}}
	require.NoError(t, p.Write(&src))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, `key="Name" value="svc"`)
	assert.Contains(t, content, `key="Retries" value="5"`)
	assert.Contains(t, content, `key="Tags1" value="a"`)
	assert.Contains(t, content, `key="Tags2" value="b"`)

	dst := appConfig{Name: "app", Retries: 3}
	require.NoError(t, p.Read(&dst))
	assert.Equal(t, "svc", dst.Name)
	assert.Equal(t, 5, dst.Retries)
	assert.Equal(t, []string{"a", "b"}, dst.Tags)
}

func TestCoercionFailurePolicy(t *testing.T) {
	const malformed = `<configuration>
  <appSettings>
    <add key="Name" value="svc"/>
    <add key="Retries" value="not-a-number"/>
  </appSettings>
</configuration>`

	t.Run("LenientKeepsDefault", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.config")
		require.NoError(t, os.WriteFile(path, []byte(malformed), 0644))

		p, err := New(Options{File: path})
		require.NoError(t, err)

		cfg := struct {
			Base
			Name    string
			Retries int
		}{Retries: 3}
		require.NoError(t, p.Read(&cfg))
		assert.Equal(t, "svc", cfg.Name)
		assert.Equal(t, 3, cfg.Retries)
		assert.Contains(t, cfg.LastError, "Retries")
	})

	t.Run("StrictFails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.config")
		require.NoError(t, os.WriteFile(path, []byte(malformed), 0644))

		p, err := New(Options{File: path, Strict: true})
		require.NoError(t, err)

		cfg := struct {
			Base
			Name    string
			Retries int
		}{}
		err = p.Read(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Retries")
	})
}

type vaultConfig struct {
	Base
	Secret string
}

func (c *vaultConfig) EncryptSettings() error {
	c.Secret = "enc:" + c.Secret
	return nil
}

func (c *vaultConfig) DecryptSettings() error {
	c.Secret = strings.TrimPrefix(c.Secret, "enc:")
	return nil
}

func TestEncryptDecryptHooks(t *testing.T) {
	p, path := newFileProvider(t, "vault")

	src := vaultConfig{Secret: "hunter2"}
	require.NoError(t, p.Write(&src))

	// The store holds the encrypted form, the object never does.
	assert.Equal(t, "hunter2", src.Secret)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `value="enc:hunter2"`)
	assert.NotContains(t, string(raw), `value="hunter2"`)

	var dst vaultConfig
	require.NoError(t, p.Read(&dst))
	assert.Equal(t, "hunter2", dst.Secret)
}

func TestConcurrentWrites(t *testing.T) {
	p, _ := newFileProvider(t, "service")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cfg := sampleConfig()
			cfg.Retries = n
			assert.NoError(t, p.Write(&cfg))
		}(i)
	}
	wg.Wait()

	var dst serviceConfig
	require.NoError(t, p.Read(&dst))
	assert.Equal(t, "svc", dst.Name)
	assert.GreaterOrEqual(t, dst.Retries, 0)
	assert.Less(t, dst.Retries, 8)
}

func TestSectionSnapshot(t *testing.T) {
	p, _ := newFileProvider(t, "service")
	src := sampleConfig()
	require.NoError(t, p.Write(&src))

	snap, err := p.Section()
	require.NoError(t, err)
	assert.Equal(t, "svc", snap["Name"])
	assert.Equal(t, "8080", snap["Ports1"])
}

func TestQuick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config")

	cfg := serviceConfig{Name: "app", Retries: 3}
	p, err := Quick(&cfg, path, "service")
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "app", cfg.Name)
	assert.FileExists(t, path)
}
