package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbound/dato/common"
)

func TestWriteRequestRoundTrip(t *testing.T) {
	req := Request{Write: &WriteRequest{
		Namespace: common.Namespace("ns"),
		Message:   common.Message("hello"),
	}}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var out Request
	require.NoError(t, json.Unmarshal(data, &out))

	require.NotNil(t, out.Write)
	assert.Nil(t, out.ReadRange)
	assert.Nil(t, out.ReadMessage)
	assert.Nil(t, out.Subscribe)
	assert.Equal(t, common.Namespace("ns"), out.Write.Namespace)
	assert.Equal(t, common.Message("hello"), out.Write.Message)
}

func TestReadRangeRequestRoundTrip(t *testing.T) {
	req := Request{ReadRange: &ReadRangeRequest{
		Namespace: common.Namespace("ns"),
		Start:     100,
		End:       200,
	}}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var out Request
	require.NoError(t, json.Unmarshal(data, &out))
	require.NotNil(t, out.ReadRange)
	assert.Equal(t, common.Timestamp(100), out.ReadRange.Start)
	assert.Equal(t, common.Timestamp(200), out.ReadRange.End)
}

func TestSubscribeRequestRoundTrip(t *testing.T) {
	req := Request{Subscribe: &SubscribeRequest{Namespace: common.Namespace("topic")}}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var out Request
	require.NoError(t, json.Unmarshal(data, &out))
	require.NotNil(t, out.Subscribe)
	assert.Equal(t, common.Namespace("topic"), out.Subscribe.Namespace)
}
