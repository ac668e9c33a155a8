package natsjetstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oebrowse/errors"
	"oebrowse/messaging"
)

func TestMarshalUnmarshal(t *testing.T) {
	ts := time.Unix(0, 1700000000000000000)
	msg := &messaging.Message{
		ID:        "evt-1",
		Type:      messaging.EventRecordWritten,
		Timestamp: ts,
		Payload:   messaging.RecordChange{Database: "demo", Model: "res.partner", ID: 42, Fields: []string{"name"}},
		Metadata:  map[string]interface{}{"database": "demo"},
	}
	data, err := marshalMessage(msg)
	require.NoError(t, err)

	decoded, err := unmarshalMessage(data)
	require.NoError(t, err)

	assert.Equal(t, msg.ID, decoded.GetID())
	assert.Equal(t, msg.Type, decoded.GetType())
	assert.Equal(t, ts.UnixNano(), decoded.GetTimestamp().UnixNano())
	payload := decoded.GetPayload().(map[string]interface{})
	assert.Equal(t, "res.partner", payload["model"])
	assert.Equal(t, float64(42), payload["id"])
	assert.Equal(t, "demo", decoded.GetMetadata()["database"])
}

func TestNewTransportDefaults(t *testing.T) {
	tpt := NewTransport(Config{SubjectPrefix: "erp"})
	assert.Equal(t, "OEBROWSE", tpt.cfg.Stream)
	assert.Equal(t, "erp.", tpt.cfg.SubjectPrefix)
	assert.Equal(t, "erp.record.created", tpt.subjectName(messaging.EventRecordCreated))
	assert.Equal(t, "erp.>", tpt.subjectName(messaging.Wildcard))
	assert.Equal(t, "record_created", durableName(messaging.EventRecordCreated))
	assert.Equal(t, "all", durableName(messaging.Wildcard))
}

func TestPublishRequiresStart(t *testing.T) {
	tpt := NewTransport(Config{})
	err := tpt.Publish(context.Background(), messaging.NewMessage(messaging.EventRecordCreated, nil))
	require.Error(t, err)
	assert.True(t, errors.IsPrecondition(err))
	assert.False(t, tpt.Stats().Running)
}
