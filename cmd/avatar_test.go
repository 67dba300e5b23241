package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvatarArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantID  string
		wantURL string
		wantErr bool
	}{
		{
			name:    "explicit id",
			args:    []string{"3", "https://example.com/card"},
			wantID:  "3",
			wantURL: "https://example.com/card",
		},
		{
			name:    "id from avatar url",
			args:    []string{"media://local/avatar/2/card-1"},
			wantID:  "2",
			wantURL: "media://local/avatar/2/card-1",
		},
		{
			name:    "url without workspace",
			args:    []string{"https://example.com/card"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, url, err := avatarArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantURL, url)
		})
	}
}
