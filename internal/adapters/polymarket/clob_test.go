package polymarket_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchOrderBook_SortsLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/book", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("token_id"))
		fmt.Fprint(w, `{"asset_id":"tok",
			"bids":[{"price":"0.40","size":"10"},{"price":"0.44","size":"5"}],
			"asks":[{"price":"0.52","size":"8"},{"price":"0.47","size":"3"},{"price":"0.50","size":"0"}]}`)
	}))
	defer srv.Close()

	book, err := newTestClient(srv, nil).FetchOrderBook(context.Background(), "tok")
	require.NoError(t, err)

	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 0.47, ask)
	bid, _ := book.BestBid()
	assert.Equal(t, 0.44, bid)
	assert.Len(t, book.Asks, 2, "niveles con size 0 se descartan")
}

func TestFetchOrderBooks_Batches(t *testing.T) {
	var batches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req []struct {
			TokenID string `json:"token_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len(req), 20)
		batches.Add(1)

		out := make([]map[string]any, 0, len(req))
		for _, b := range req {
			out = append(out, map[string]any{
				"asset_id": b.TokenID,
				"asks":     []map[string]string{{"price": "0.6", "size": "1"}},
			})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	ids := make([]string, 45)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%d", i)
	}
	books, err := newTestClient(srv, nil).FetchOrderBooks(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, books, 45)
	assert.Equal(t, int32(3), batches.Load())
}

func TestFetchOrderBooks_ServerErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).FetchOrderBooks(context.Background(), []string{"a"})
	assert.Error(t, err)
}
