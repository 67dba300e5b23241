package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	f := NewFile(path)

	assert.NotNil(t, f)
	assert.Equal(t, path, f.Path())
	assert.Equal(t, path+".lock", f.lockPath())
}

func TestGetReturnsDefaultsWhenFileAbsent(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "nested", "settings.json"))

	cardDir, err := Get(f, "cardDir", "/default/cards")
	require.NoError(t, err)
	assert.Equal(t, "/default/cards", cardDir)

	lang, err := Get(f, "i18n", "en")
	require.NoError(t, err)
	assert.Equal(t, "en", lang)

	urls, err := Get(f, "navigationAllowedURLs", []string{})
	require.NoError(t, err)
	assert.Equal(t, []string{}, urls)
}

func TestSetThenGetAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	tests := []struct {
		name  string
		key   string
		value any
		def   any
	}{
		{name: "card dir", key: "cardDir", value: "/data/cards", def: "/default"},
		{name: "language", key: "i18n", value: "ja", def: "en"},
		{name: "allowed urls", key: "navigationAllowedURLs", value: []string{"https://a.com", "https://b.com"}, def: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, NewFile(path).Set(tt.key, tt.value))

			// A fresh File simulates a process restart.
			restarted := NewFile(path)
			switch want := tt.value.(type) {
			case string:
				got, err := Get(restarted, tt.key, tt.def.(string))
				require.NoError(t, err)
				assert.Equal(t, want, got)
			case []string:
				got, err := Get(restarted, tt.key, tt.def.([]string))
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestSetPreservesOtherKeys(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "settings.json"))

	require.NoError(t, f.Set("cardDir", "/cards"))
	require.NoError(t, f.Set("i18n", "ja"))
	require.NoError(t, f.Set("cardDir", "/other"))

	values, err := f.Snapshot()
	require.NoError(t, err)

	assert.Len(t, values, 2)
	assert.JSONEq(t, `"ja"`, string(values["i18n"]))
	assert.JSONEq(t, `"/other"`, string(values["cardDir"]))
}

func TestAtomicWriteLeavesNoTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	f := NewFile(path)

	require.NoError(t, f.Set("cardDir", "/cards"))

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers, "Temp file should be removed after save")
}

func TestLoadToleratesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{
  // edited by hand
  "cardDir": "/hand/edited",
  "navigationAllowedURLs": ["https://a.com",],
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	f := NewFile(path)
	dir, err := Get(f, "cardDir", "")
	require.NoError(t, err)
	assert.Equal(t, "/hand/edited", dir)

	urls, err := Get(f, "navigationAllowedURLs", []string(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com"}, urls)
}

func TestCorruptFileIsPersistenceFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	f := NewFile(path)
	got, err := Get(f, "cardDir", "/fallback")

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Equal(t, "/fallback", got)

	// A failed write must not clobber the corrupt file.
	err = f.Set("cardDir", "/new")
	assert.True(t, errors.Is(err, ErrPersistence))
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "{not json", string(data))
}

func TestWrongTypeIsPersistenceFailure(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, f.Set("cardDir", 42))

	_, err := Get(f, "cardDir", "")
	assert.True(t, errors.Is(err, ErrPersistence))
}

func TestChangesReportsForeignWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	f := NewFile(path)

	changed, err := f.Changes()
	require.NoError(t, err)
	assert.Empty(t, changed, "missing file has no changes")

	require.NoError(t, f.Set("cardDir", "/cards"))
	require.NoError(t, f.Set("navigationAllowedURLs", []string{"https://a.com"}))
	changed, err = f.Changes()
	require.NoError(t, err)
	assert.Empty(t, changed, "own writes are not changes")

	// Reformatting alone is not a change; only i18n was edited.
	edited := `{
  // by hand
  "cardDir": "/cards",
  "i18n": "ja",
  "navigationAllowedURLs": [
    "https://a.com",
  ],
}`
	require.NoError(t, os.WriteFile(path, []byte(edited), 0644))

	changed, err = f.Changes()
	require.NoError(t, err)
	assert.Equal(t, map[string]json.RawMessage{"i18n": json.RawMessage(`"ja"`)}, changed)

	changed, err = f.Changes()
	require.NoError(t, err)
	assert.Empty(t, changed, "reported values are not reported again")
}

func TestChangesIgnoresKeysMergedByOwnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	f := NewFile(path)
	require.NoError(t, f.Set("cardDir", "/cards"))

	require.NoError(t, os.WriteFile(path, []byte(`{"cardDir":"/cards","i18n":"ja"}`), 0644))
	// Our next write carries the foreign key over; it is still reported.
	require.NoError(t, f.Set("cardDir", "/mine"))

	changed, err := f.Changes()
	require.NoError(t, err)
	assert.Equal(t, map[string]json.RawMessage{"i18n": json.RawMessage(`"ja"`)}, changed)
}
