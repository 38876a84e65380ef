package backend

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSChannelDecodesMessages(t *testing.T) {
	var got []ProgressEvent
	ch := NewNATSChannel("nats://127.0.0.1:1", "", func(ev ProgressEvent) { got = append(got, ev) }, quietLogger())
	assert.Equal(t, DefaultNATSSubject, ch.subject)

	ch.onMsg(&nats.Msg{Data: []byte(`{"type":"processing","message":"a.pdf","timestamp":1,"job_id":"J1"}`)})
	ch.onMsg(&nats.Msg{Data: []byte(`garbage`)})
	ch.onMsg(&nats.Msg{Data: []byte(`{"type":"complete","message":"done","timestamp":2}`)})

	require.Len(t, got, 2)
	assert.Equal(t, "J1", got[0].JobID)
	assert.Equal(t, CategoryProcessing, got[0].Category)
	assert.Equal(t, CategoryComplete, got[1].Category)
	assert.Empty(t, got[1].JobID)

	require.NoError(t, ch.Close())
	ch.onMsg(&nats.Msg{Data: []byte(`{"type":"info","message":"late"}`)})
	assert.Len(t, got, 2)
}

func TestNATSChannelConnectFailure(t *testing.T) {
	ch := NewNATSChannel("nats://127.0.0.1:1", "jobs.progress", func(ProgressEvent) {}, quietLogger())
	assert.Error(t, ch.Connect(t.Context()))
	assert.NoError(t, ch.Close())
}
