package model

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRating(t *testing.T) {
	tests := []struct {
		rating int
		want   RatingClass
		label  string
	}{
		{-3, RatingLow, "Lame"},
		{0, RatingLow, "Lame"},
		{1, RatingAverage, "Average"},
		{10, RatingAverage, "Average"},
		{15, RatingAverage, "Average"},
		{16, RatingHigh, "Awesome"},
	}
	for _, tt := range tests {
		got := ClassifyRating(tt.rating)
		assert.Equal(t, tt.want, got, "rating=%d", tt.rating)
		assert.Equal(t, tt.label, got.Label(), "rating=%d", tt.rating)
	}
}

func TestPartyID(t *testing.T) {
	t.Run("同じ座標からは同じIDになる", func(t *testing.T) {
		assert.Equal(t, PartyID(40.0, -75.0), PartyID(40.0, -75.0))
	})

	t.Run("座標が違えばIDも違う", func(t *testing.T) {
		assert.NotEqual(t, PartyID(40.0, -75.0), PartyID(40.0, -75.0000001))
		assert.NotEqual(t, PartyID(40.0, -75.0), PartyID(-75.0, 40.0))
	})

	t.Run("負のゼロはゼロと同じIDになる", func(t *testing.T) {
		assert.Equal(t, PartyID(0, 0), PartyID(math.Copysign(0, -1), math.Copysign(0, -1)))
		assert.Equal(t, "0,0", CoordinateKey(math.Copysign(0, -1), 0))
	})

	t.Run("UUIDv5形式", func(t *testing.T) {
		id, err := uuid.Parse(PartyID(40.0, -75.0))
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(5), id.Version())
	})
}

func TestPartyClone(t *testing.T) {
	p := Party{
		ID:         "p1",
		Geocells:   []string{"c", "c3"},
		RatersSeen: []string{"A"},
		Rating:     5,
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	c := p.Clone()
	c.Geocells[0] = "x"
	c.RatersSeen[0] = "B"
	c.Rating = 99

	assert.Equal(t, "c", p.Geocells[0])
	assert.Equal(t, "A", p.RatersSeen[0])
	assert.Equal(t, 5, p.Rating)
	assert.True(t, p.HasRater("A"))
	assert.False(t, p.HasRater("B"))
}

func TestPartyRatingValidate(t *testing.T) {
	valid := PartyRating{Latitude: 40, Longitude: -75, RaterID: "A"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		req  PartyRating
	}{
		{"緯度が範囲外", PartyRating{Latitude: 91, Longitude: 0, RaterID: "A"}},
		{"経度が範囲外", PartyRating{Latitude: 0, Longitude: -180.5, RaterID: "A"}},
		{"緯度がNaN", PartyRating{Latitude: math.NaN(), Longitude: 0, RaterID: "A"}},
		{"経度が無限大", PartyRating{Latitude: 0, Longitude: math.Inf(1), RaterID: "A"}},
		{"評価者IDが空", PartyRating{Latitude: 0, Longitude: 0, RaterID: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.req.Validate(), ErrInvalidInput)
		})
	}
}
