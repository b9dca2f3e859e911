package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibilityRoundTrip(t *testing.T) {
	var rec FileRecord
	err := json.Unmarshal([]byte(`{"id":"6f1c7c1e-8d4b-4c43-9b53-2b0f8a1b9e11","name":"a","visibility":"private"}`), &rec)
	require.NoError(t, err)
	assert.Equal(t, Private, rec.Visibility)

	err = json.Unmarshal([]byte(`{"visibility":"friends"}`), &rec)
	assert.Error(t, err)
}

func TestSummaryDropsLocalFields(t *testing.T) {
	rec := FileRecord{
		ID:         uuid.New(),
		Name:       "photo.jpg",
		Mime:       "image/jpeg",
		Visibility: Public,
		Path:       "/home/me/photo.jpg",
	}
	data, err := json.Marshal(rec.Summary())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "/home/me")
	assert.NotContains(t, string(data), "visibility")
}
