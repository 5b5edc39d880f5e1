package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbound/dato/blssig"
	"github.com/chainbound/dato/common"
	"github.com/chainbound/dato/transport"
	"github.com/chainbound/dato/wire"
)

func newTestValidator(t *testing.T) (*Validator, *blssig.SecretKey) {
	t.Helper()
	sk, err := blssig.GenerateSecretKey()
	require.NoError(t, err)

	v, err := New(sk, Config{RequestAddr: "127.0.0.1:0", PublisherAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v, sk
}

func dial(t *testing.T, v *Validator) *transport.ReqRepClient {
	t.Helper()
	url := fmt.Sprintf("ws://%s/", v.RequestAddr())
	var client *transport.ReqRepClient
	var err error
	for i := 0; i < 20; i++ {
		client, err = transport.DialReqRep(url)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func roundTrip(t *testing.T, client *transport.ReqRepClient, req wire.Request) []byte {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := client.Request(ctx, payload)
	require.NoError(t, err)
	return resp
}

func TestValidatorWriteThenReadRange(t *testing.T) {
	v, sk := newTestValidator(t)
	client := dial(t, v)
	ns := common.Namespace("ns")

	resp := roundTrip(t, client, wire.Request{Write: &wire.WriteRequest{
		Namespace: ns, Message: common.Message("hello"),
	}})

	var record common.Record
	require.NoError(t, json.Unmarshal(resp, &record))
	assert.Equal(t, common.Message("hello"), record.Message)

	digest := record.Digest(ns)
	assert.True(t, blssig.Verify(record.Signature, sk.PublicKey(), digest.Bytes()))

	resp = roundTrip(t, client, wire.Request{ReadRange: &wire.ReadRangeRequest{
		Namespace: ns, Start: 0, End: common.Now() + 1,
	}})
	var l common.Log
	require.NoError(t, json.Unmarshal(resp, &l))
	require.Len(t, l.Records, 1)
	assert.Equal(t, common.Message("hello"), l.Records[0].Message)
}

func TestValidatorReadMessageUnavailable(t *testing.T) {
	v, sk := newTestValidator(t)
	client := dial(t, v)
	ns := common.Namespace("ns")

	var zero common.Digest
	resp := roundTrip(t, client, wire.Request{ReadMessage: &wire.ReadMessageRequest{
		Namespace: ns, MsgID: zero,
	}})

	var out common.ReadMessageResponse
	require.NoError(t, json.Unmarshal(resp, &out))
	require.Nil(t, out.Available)
	require.NotNil(t, out.Unavailable)
	assert.Equal(t, zero, out.Unavailable.MsgID)

	digest := out.Unavailable.Digest()
	assert.True(t, blssig.Verify(out.Unavailable.Signature, sk.PublicKey(), digest.Bytes()))
}

func TestValidatorReadMessageAvailable(t *testing.T) {
	v, _ := newTestValidator(t)
	client := dial(t, v)
	ns := common.Namespace("ns")

	roundTrip(t, client, wire.Request{Write: &wire.WriteRequest{
		Namespace: ns, Message: common.Message("findme"),
	}})

	msgID := common.MessageDigest(ns, common.Message("findme"))
	resp := roundTrip(t, client, wire.Request{ReadMessage: &wire.ReadMessageRequest{
		Namespace: ns, MsgID: msgID,
	}})

	var out common.ReadMessageResponse
	require.NoError(t, json.Unmarshal(resp, &out))
	require.NotNil(t, out.Available)
	assert.Equal(t, common.Message("findme"), out.Available.Message)
}

func TestValidatorSubscribeThenPublish(t *testing.T) {
	v, _ := newTestValidator(t)
	client := dial(t, v)
	ns := common.Namespace("ns")

	resp := roundTrip(t, client, wire.Request{Subscribe: &wire.SubscribeRequest{Namespace: ns}})
	var subResp common.SubscribeResponse
	require.NoError(t, json.Unmarshal(resp, &subResp))
	assert.NotZero(t, subResp.Port)
	assert.Len(t, subResp.AuthToken, 16)

	sub := transport.NewSubscriber()
	pubURL := fmt.Sprintf("ws://127.0.0.1:%d/", subResp.Port)

	var err error
	for i := 0; i < 20; i++ {
		err = sub.Connect(pubURL, string(ns))
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer sub.Close()

	// Give the publisher a moment to register the subscriber before the
	// write that should trigger a fanout.
	time.Sleep(50 * time.Millisecond)
	roundTrip(t, client, wire.Request{Write: &wire.WriteRequest{
		Namespace: ns, Message: common.Message("fanned-out"),
	}})

	select {
	case data := <-sub.Records():
		var record common.Record
		require.NoError(t, json.Unmarshal(data, &record))
		assert.Equal(t, common.Message("fanned-out"), record.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published record")
	}
}
