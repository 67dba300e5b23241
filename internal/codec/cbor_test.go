package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string   `json:"name"`
	Avatars []string `json:"avatars"`
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]sample{
		"2": {Name: "Home", Avatars: []string{"media://local/avatar/2/a"}},
		"1": {Name: "Work", Avatars: []string{}},
	}

	first, err := Marshal(value)
	require.NoError(t, err)
	second, err := Marshal(value)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second), "encoding should be deterministic")
}

func TestJSONTagsAreHonoured(t *testing.T) {
	data, err := Marshal(sample{Name: "Work"})
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, Unmarshal(data, &generic))

	assert.Equal(t, "Work", generic["name"])
	assert.Contains(t, generic, "avatars")
}

func TestStreamRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	messages := []sample{
		{Name: "a", Avatars: []string{"x"}},
		{Name: "b"},
	}
	for _, m := range messages {
		require.NoError(t, enc.Encode(m))
	}

	dec := NewDecoder(&buf)
	for _, want := range messages {
		var got sample
		require.NoError(t, dec.Decode(&got))
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, len(want.Avatars), len(got.Avatars))
	}
}

func TestUntypedPayloadDecodesAsStringMap(t *testing.T) {
	data, err := Marshal(map[string]any{"payload": []string{"https://a.com"}})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, Unmarshal(data, &out))

	list, ok := out["payload"].([]any)
	require.True(t, ok)
	assert.Equal(t, "https://a.com", list[0])
}
