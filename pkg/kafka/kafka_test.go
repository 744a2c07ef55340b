package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSetsGenerationHeader(t *testing.T) {
	msgs, size, err := encode([]Event{
		{Key: "7", Value: map[string]int{"generation": 7}, Generation: 7},
		{Key: "search", Value: map[string]string{"query": "whale"}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, []byte("7"), msgs[0].Key)
	assert.JSONEq(t, `{"generation":7}`, string(msgs[0].Value))
	assert.Equal(t, uint64(7), Generation(msgs[0]))
	assert.Empty(t, msgs[1].Headers)
	assert.Zero(t, Generation(msgs[1]))
	assert.Equal(t, len(msgs[0].Value)+len(msgs[1].Value), size)
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, _, err := encode([]Event{{Key: "bad", Value: make(chan int)}})
	assert.ErrorContains(t, err, `"bad"`)
}

func TestGenerationIgnoresMalformedHeader(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: GenerationHeader, Value: []byte("x")}}}
	assert.Zero(t, Generation(msg))
}

func TestDecodeJSON(t *testing.T) {
	type announcement struct {
		Generation uint64 `json:"generation"`
	}
	got, err := DecodeJSON[announcement]([]byte(`{"generation":3}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Generation)

	_, err = DecodeJSON[announcement]([]byte(`{`))
	assert.Error(t, err)
}
