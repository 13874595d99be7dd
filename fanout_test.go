// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postBroadcast(t *testing.T, handler http.Handler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/internal/broadcast", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// TestFanoutServer_HandleBroadcast tests the fan-out receiver endpoint.
func TestFanoutServer_HandleBroadcast(t *testing.T) {
	t.Parallel()

	t.Run("pushes to every connection in the room", func(t *testing.T) {
		t.Parallel()

		reg := NewRegistry()
		a := &fakeClientConn{}
		b := &fakeClientConn{}
		other := &fakeClientConn{}
		reg.Add(a, "1")
		reg.Add(b, "1")
		reg.Add(other, "2")

		srv := NewFanoutServer(reg, nil)
		body, _ := json.Marshal(broadcastRequest{RoomID: "1", Message: `{"messageId":"m-1"}`})
		rec := postBroadcast(t, srv.Handler(), body)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp broadcastResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Sent)
		assert.Equal(t, 0, resp.Failed)
		assert.Equal(t, "1", resp.RoomID)

		require.Len(t, a.sent, 1)
		assert.Equal(t, `{"messageId":"m-1"}`, string(a.sent[0]))
		require.Len(t, b.sent, 1)
		assert.Empty(t, other.sent, "other rooms must not receive the message")
	})

	t.Run("per-connection failure does not abort the fan-out", func(t *testing.T) {
		t.Parallel()

		reg := NewRegistry()
		bad := &fakeClientConn{sendErr: fmt.Errorf("connection reset")}
		good := &fakeClientConn{}
		reg.Add(bad, "1")
		reg.Add(good, "1")

		srv := NewFanoutServer(reg, nil)
		body, _ := json.Marshal(broadcastRequest{RoomID: "1", Message: "payload"})
		rec := postBroadcast(t, srv.Handler(), body)

		// Still 200: the broker tier must not retry for one dead recipient.
		require.Equal(t, http.StatusOK, rec.Code)
		var resp broadcastResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Sent)
		assert.Equal(t, 1, resp.Failed)
		require.Len(t, good.sent, 1)
	})

	t.Run("empty room is success with zero sent", func(t *testing.T) {
		t.Parallel()

		srv := NewFanoutServer(NewRegistry(), nil)
		body, _ := json.Marshal(broadcastRequest{RoomID: "99", Message: "payload"})
		rec := postBroadcast(t, srv.Handler(), body)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp broadcastResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.Sent)
		assert.Equal(t, 0, resp.Failed)
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		t.Parallel()

		srv := NewFanoutServer(NewRegistry(), nil)
		rec := postBroadcast(t, srv.Handler(), []byte("{not json"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		t.Parallel()

		srv := NewFanoutServer(NewRegistry(), nil)
		for _, body := range []string{
			`{"roomId":"1"}`,
			`{"message":"hi"}`,
			`{}`,
		} {
			rec := postBroadcast(t, srv.Handler(), []byte(body))
			assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()

		srv := NewFanoutServer(NewRegistry(), nil)
		req := httptest.NewRequest(http.MethodGet, "/internal/broadcast", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
