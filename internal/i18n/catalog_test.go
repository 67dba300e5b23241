package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalogEmbedsBundles(t *testing.T) {
	c, err := NewCatalog()
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "ja"}, c.Languages())
	assert.Equal(t, "Exit", c.Messages("en")["exit"])
	assert.Equal(t, "終了", c.Messages("ja")["exit"])
}

func TestMatch(t *testing.T) {
	c, err := NewCatalog()
	require.NoError(t, err)

	tests := []struct {
		requested string
		want      string
	}{
		{requested: "en", want: "en"},
		{requested: "ja", want: "ja"},
		{requested: "ja-JP", want: "ja"},
		{requested: "en-GB", want: "en"},
		{requested: "fr", want: "en"},
		{requested: "", want: "en"},
		{requested: "not a tag!", want: "en"},
	}

	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Match(tt.requested))
		})
	}
}

func TestMessagesFallBackToDefaultLabels(t *testing.T) {
	c, err := NewCatalog()
	require.NoError(t, err)

	ja := c.Messages("ja")
	// "workspace" only exists in the English bundle.
	assert.Equal(t, "Workspace $1", ja["workspace"])
	assert.Equal(t, "設定", ja["SettingsDialog"])
}

func TestMessagesReturnsCopy(t *testing.T) {
	c, err := NewCatalog()
	require.NoError(t, err)

	m := c.Messages("en")
	m["exit"] = "changed"

	assert.Equal(t, "Exit", c.Messages("en")["exit"])
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de.yaml"), []byte("exit: Beenden\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"), []byte("exit: Quit\n"), 0644))

	c, err := NewCatalog()
	require.NoError(t, err)
	require.NoError(t, c.LoadDir(dir))

	assert.Equal(t, []string{"en", "de", "ja"}, c.Languages())
	assert.Equal(t, "de", c.Match("de-AT"))
	assert.Equal(t, "Beenden", c.Messages("de")["exit"])
	assert.Equal(t, "Zoom In", c.Messages("de")["zoomIn"])
	assert.Equal(t, "Quit", c.Messages("en")["exit"])
}

func TestLoadDirRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de.yaml"), []byte("exit: [unterminated\n"), 0644))

	c, err := NewCatalog()
	require.NoError(t, err)

	err = c.LoadDir(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "de.yaml")
}

func TestSetFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de.yaml"), []byte("exit: Beenden\n"), 0644))

	c, err := NewCatalog()
	require.NoError(t, err)
	require.NoError(t, c.LoadDir(dir))
	require.NoError(t, c.SetFallback("ja"))

	assert.Equal(t, "ja", c.Languages()[0])
	assert.Equal(t, "ja", c.Match("fr"))

	messages := c.Messages("de")
	assert.Equal(t, "Beenden", messages["exit"])
	assert.Equal(t, "設定...", messages["settings"], "missing labels come from the fallback bundle")

	assert.Error(t, c.SetFallback("pt"))
	assert.Error(t, c.SetFallback("not a language"))
	assert.Equal(t, "ja", c.Match("fr"), "a rejected fallback leaves the previous one")
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		message string
		args    []string
		want    string
	}{
		{name: "no args", message: "Exit", want: "Exit"},
		{name: "single", message: "Workspace $1", args: []string{"Home"}, want: "Workspace Home"},
		{name: "ordered", message: "$2 then $1", args: []string{"a", "b"}, want: "b then a"},
		{name: "missing arg left alone", message: "$1 and $2", args: []string{"x"}, want: "x and $2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.message, tt.args...))
		})
	}
}
