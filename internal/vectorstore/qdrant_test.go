package vectorstore

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_Validate(t *testing.T) {
	valid := QdrantConfig{Host: "localhost", Port: 6334, VectorSize: 1536}
	valid.ApplyDefaults()
	assert.NoError(t, valid.Validate())
	assert.Equal(t, "poultry_knowledge", valid.CollectionName)
	assert.Equal(t, qdrant.Distance_Cosine, valid.Distance)

	tests := []struct {
		name string
		cfg  QdrantConfig
	}{
		{"no host", QdrantConfig{Port: 6334, VectorSize: 3, CollectionName: "c"}},
		{"bad port", QdrantConfig{Host: "h", Port: 70000, VectorSize: 3, CollectionName: "c"}},
		{"no vector size", QdrantConfig{Host: "h", Port: 6334, CollectionName: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, IsTransientError(status.Error(grpccodes.Unavailable, "down")))
	assert.True(t, IsTransientError(status.Error(grpccodes.ResourceExhausted, "busy")))
	assert.False(t, IsTransientError(status.Error(grpccodes.InvalidArgument, "bad")))
	assert.False(t, IsTransientError(errors.New("plain")))
	assert.False(t, IsTransientError(nil))
}

func TestPayloadRoundTrip(t *testing.T) {
	doc := Document{
		Content:  "Newcastle disease vaccination schedule",
		Source:   "vaccination.md",
		Metadata: map[string]string{"species": "broiler"},
	}
	got := fromPayload(toPayload("doc-1", doc))

	assert.Equal(t, "doc-1", got.ID)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.Source, got.Source)
	assert.Equal(t, "broiler", got.Metadata["species"])
}

func TestPointID(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, id, pointID(id).GetUuid())

	a := pointID("guide.md#3").GetUuid()
	b := pointID("guide.md#3").GetUuid()
	assert.Equal(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
