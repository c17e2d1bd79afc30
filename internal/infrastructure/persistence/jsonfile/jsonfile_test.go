package jsonfile_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/persistence/jsonfile"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.json")

	require.NoError(t, jsonfile.Save(path, payload{Name: "balanced", Count: 3}))

	var got payload
	require.NoError(t, jsonfile.Load(path, &got))
	assert.Equal(t, payload{Name: "balanced", Count: 3}, got)
}

func TestLoadMissingFileYieldsNoError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	var got payload
	assert.NoError(t, jsonfile.Load(path, &got))
	assert.Equal(t, payload{}, got)
}

func TestLoadCorruptFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.json")
	require.NoError(t, jsonfile.Save(path, payload{Name: "x"}))

	// Overwrite with JSON whose count field has the wrong type, so decoding fails.
	require.NoError(t, jsonfile.Save(path, map[string]any{"count": "not-an-int-but-still-valid-json"}))
	var got struct {
		Count int `json:"count"`
	}
	assert.Error(t, jsonfile.Load(path, &got))
}
