package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbound/dato/common"
)

func TestAPIHandleWrite(t *testing.T) {
	net := newTestNetwork(t, 1)
	srv := httptest.NewServer(NewAPI(net.coord).Handler())
	defer srv.Close()

	body, _ := json.Marshal(writeRequestBody{Namespace: "ns", Message: "hello"})
	resp, err := http.Post(srv.URL+writePathV1, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var record common.CertifiedRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&record))
	assert.Equal(t, common.Message("hello"), record.Message)
}

func TestAPIHandleReadRoundTrip(t *testing.T) {
	net := newTestNetwork(t, 1)
	srv := httptest.NewServer(NewAPI(net.coord).Handler())
	defer srv.Close()

	body, _ := json.Marshal(writeRequestBody{Namespace: "ns", Message: "a"})
	_, err := http.Post(srv.URL+writePathV1, "application/json", bytes.NewReader(body))
	require.NoError(t, err)

	url := fmt.Sprintf("%s%s?namespace=ns&start=0&end=%d", srv.URL, readPathV1, common.Now()+1)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var l common.Log
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&l))
	assert.Len(t, l.Records, 1)
}

func TestAPIHandleReadMessageInvalidDigest(t *testing.T) {
	net := newTestNetwork(t, 1)
	srv := httptest.NewServer(NewAPI(net.coord).Handler())
	defer srv.Close()

	url := fmt.Sprintf("%s%s?namespace=ns&msgId=not-hex", srv.URL, readMessagePathV1)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandleSubscribeStreamsSSE(t *testing.T) {
	net := newTestNetwork(t, 1)
	srv := httptest.NewServer(NewAPI(net.coord).Handler())
	defer srv.Close()

	client := &http.Client{Timeout: 3 * time.Second}
	req, err := http.NewRequest(http.MethodGet, srv.URL+subscribePathV1+"?namespace=ns", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	time.Sleep(50 * time.Millisecond)
	body, _ := json.Marshal(writeRequestBody{Namespace: "ns", Message: "streamed"})
	writeResp, err := http.Post(srv.URL+writePathV1, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	writeResp.Body.Close()

	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "event: record")
}
