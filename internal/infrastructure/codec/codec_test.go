package codec

import (
	"testing"
	"time"

	"reelhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnknownCodec(t *testing.T) {
	_, err := New("xml")
	assert.Error(t, err)
}

func TestCodecs_PreserveCuratorDocument(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 123, time.UTC)
	doc := &domain.CuratorProfile{
		ProfileMeta: domain.ProfileMeta{OwnerID: "c1", CreatedAt: now, UpdatedAt: now},
		Expertise:   []string{"noir", "western"},
		ListsCount:  1,
		CuratedLists: []domain.CuratedList{{
			ListID:    "l1",
			ListName:  "Top Noir",
			CreatedAt: now,
			Movies:    []domain.ListMovie{{MovieID: "m1", MovieTitle: "Chinatown", AddedAt: now}},
		}},
		Recommendations: []domain.Recommendation{},
	}

	for _, name := range []string{JSON, CBOR} {
		t.Run(name, func(t *testing.T) {
			c, err := New(name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())

			data, err := c.Marshal(doc)
			require.NoError(t, err)

			var got domain.CuratorProfile
			require.NoError(t, c.Unmarshal(data, &got))
			assert.Equal(t, doc.OwnerID, got.OwnerID)
			assert.True(t, now.Equal(got.UpdatedAt))
			assert.Equal(t, doc.Expertise, got.Expertise)
			require.Len(t, got.CuratedLists, 1)
			assert.Equal(t, "Chinatown", got.CuratedLists[0].Movies[0].MovieTitle)
			assert.Equal(t, 1, got.ListsCount)
		})
	}
}
