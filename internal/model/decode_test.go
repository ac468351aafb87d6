package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/remote"
	"github.com/matheus3301/shiftsync/internal/status"
)

func TestDecodeShiftNormalizesEveryTimestampShape(t *testing.T) {
	start := time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC)
	doc := remote.Document{ID: "s1", Fields: map[string]any{
		"title":       "Bar back",
		"role":        "bartender",
		"ownerId":     "op1",
		"status":      "offered_to_worker",
		"startTime":   "2024-01-10T18:00:00Z",
		"endTime":     timestamppb.New(start.Add(4 * time.Hour)),
		"offeredAt":   map[string]any{"seconds": float64(start.Add(-time.Hour).Unix()), "nanoseconds": float64(0)},
		"datePosted":  start.Add(-48 * time.Hour),
		"payPerHour":  25,
		"offeredTo":   "W1",
		"coordinates": map[string]any{"lat": 53.8, "lng": -1.55},
	}}

	s, err := DecodeShift(doc)
	require.NoError(t, err)

	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, status.OfferedToWorker, s.Status)
	assert.Equal(t, 25.0, s.PayPerHour)

	st, ok := s.StartTime.Time()
	require.True(t, ok)
	assert.True(t, st.Equal(start))

	et, ok := s.EndTime.Time()
	require.True(t, ok)
	assert.True(t, et.Equal(start.Add(4*time.Hour)))

	assert.True(t, s.OfferedAt.IsSet())
	assert.True(t, s.DatePosted.IsSet())
	assert.False(t, s.OfferExpiresAt.IsSet(), "absent dates stay absent")
	require.NotNil(t, s.Coordinates)
	assert.Equal(t, 53.8, s.Coordinates.Lat)
	assert.Equal(t, "2024-01-10", s.Date(time.UTC))
}

func TestDecodeShiftRejectsUnknownStatus(t *testing.T) {
	_, err := DecodeShift(remote.Document{ID: "s1", Fields: map[string]any{"status": "archived"}})
	require.Error(t, err)

	var pe *apperr.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "shifts/s1", pe.Source)
	assert.True(t, errors.Is(err, status.ErrUnknownStatus))
}

func TestDecodeShiftRequiresStatus(t *testing.T) {
	_, err := DecodeShift(remote.Document{ID: "s1", Fields: map[string]any{"title": "x"}})
	assert.Equal(t, apperr.CodeParse, apperr.CodeOf(err))
}

func TestDecodeShiftBadTimestamp(t *testing.T) {
	_, err := DecodeShift(remote.Document{ID: "s1", Fields: map[string]any{
		"status":    "posted",
		"startTime": "next tuesday",
	}})
	assert.Equal(t, apperr.CodeParse, apperr.CodeOf(err))
}

func TestDecodeJobKeepsMissingCreatedAtAbsent(t *testing.T) {
	j, err := DecodeJob(remote.Document{ID: "j1", Fields: map[string]any{
		"status":         "open",
		"ownerId":        "op1",
		"roleCategories": []any{"kitchen", "bar"},
	}})
	require.NoError(t, err)
	assert.False(t, j.CreatedAt.IsSet())
	assert.Equal(t, []string{"kitchen", "bar"}, j.RoleCategories)
	assert.Equal(t, status.Open, j.Status)
}

func TestDecodeJobRejectsShiftStatus(t *testing.T) {
	_, err := DecodeJob(remote.Document{ID: "j1", Fields: map[string]any{"status": "posted"}})
	assert.True(t, errors.Is(err, status.ErrUnknownStatus))
}

func TestDecodeConversation(t *testing.T) {
	c, err := DecodeConversation(remote.Document{ID: "c1", Fields: map[string]any{
		"participantIds": []any{"W1", "op1"},
		"lastMessage": map[string]any{
			"text":      "see you",
			"senderId":  "op1",
			"timestamp": map[string]any{"_seconds": 1704906000, "_nanoseconds": 0},
		},
		"unreadCount": map[string]any{"W1": 3},
	}})
	require.NoError(t, err)
	require.NotNil(t, c.LastMessage)
	assert.True(t, c.LastMessage.Timestamp.IsSet())
	assert.Equal(t, 3, c.UnreadFor("W1"))
	assert.Equal(t, 0, c.UnreadFor("op1"))

	_, err = DecodeConversation(remote.Document{ID: "c2", Fields: map[string]any{
		"participantIds": []any{"W1"},
	}})
	assert.Equal(t, apperr.CodeParse, apperr.CodeOf(err))
}

func TestDecodeAllDropsMalformed(t *testing.T) {
	docs := []remote.Document{
		{ID: "a", Fields: map[string]any{"status": "posted"}},
		{ID: "b", Fields: map[string]any{"status": "bogus"}},
		{ID: "c", Fields: map[string]any{"status": "confirmed"}},
	}
	shifts := DecodeAll(docs, DecodeShift, zap.NewNop())
	require.Len(t, shifts, 2)
	assert.Equal(t, "a", shifts[0].ID)
	assert.Equal(t, "c", shifts[1].ID)
}
