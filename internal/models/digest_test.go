package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestItemImageURLCasing(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"camel case", `{"title":"a","imageUrl":"https://img/camel"}`, "https://img/camel"},
		{"snake case", `{"title":"a","image_url":"https://img/snake"}`, "https://img/snake"},
		{"camel wins", `{"title":"a","imageUrl":"https://img/camel","image_url":"https://img/snake"}`, "https://img/camel"},
		{"absent", `{"title":"a"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item DigestItem
			require.NoError(t, json.Unmarshal([]byte(tt.input), &item))
			assert.Equal(t, "a", item.Title)
			assert.Equal(t, tt.want, item.ImageURL)
		})
	}
}

func TestDigestItemMatchesPersistedCasing(t *testing.T) {
	digestJSON, err := json.Marshal(DigestItem{Title: "a", ImageURL: "https://img"})
	require.NoError(t, err)
	itemJSON, err := json.Marshal(PersistedItem{Title: "a", ImageURL: "https://img"})
	require.NoError(t, err)

	assert.Contains(t, string(digestJSON), `"imageUrl":"https://img"`)
	assert.Contains(t, string(itemJSON), `"imageUrl":"https://img"`)
	assert.NotContains(t, string(digestJSON), "image_url")
}
