package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildBaseQueryNumbersPlaceholders(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", Filter{Action: ActionAdvanceTransition, EntityID: "adv-1"})
	assert.Equal(t, "SELECT COUNT(1) FROM audit_events WHERE action = $1 AND entity_id = $2", query)
	assert.Equal(t, []any{ActionAdvanceTransition, "adv-1"}, args)

	query, args = buildBaseQuery("SELECT id", Filter{})
	assert.Equal(t, "SELECT id FROM audit_events", query)
	assert.Empty(t, args)
}

func TestBuildBaseQueryTimeRange(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildBaseQuery("SELECT id", Filter{ActorUser: "u-1", From: from, Until: until})
	assert.Equal(t, "SELECT id FROM audit_events WHERE actor_user_id::text = $1 AND created_at >= $2 AND created_at < $3", query)
	assert.Equal(t, []any{"u-1", from, until}, args)
}

func TestMarshalOptional(t *testing.T) {
	raw, err := marshalOptional(nil)
	assert.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = marshalOptional(map[string]string{"status": "approved"})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"status":"approved"}`, string(raw))
}
