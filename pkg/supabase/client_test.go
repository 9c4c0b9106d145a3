package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_SendsFiltersAndKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/purchase_log", r.URL.Path)
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"item_name":"rice"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "service-key")
	body, err := c.Query(context.Background(), "purchase_log", url.Values{"user_id": {"eq.user-1"}})

	require.NoError(t, err)
	assert.JSONEq(t, `[{"item_name":"rice"}]`, string(body))
}

func TestQuery_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"down"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").Query(context.Background(), "inventory", nil)

	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	assert.False(t, IsStatus(err, http.StatusNotFound))
}

func TestCount_ReadsContentRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		w.Header().Set("Content-Range", "0-0/17")
	}))
	defer srv.Close()

	n, err := NewClient(srv.URL, "k").Count(context.Background(), "consumption_log", url.Values{"user_id": {"eq.u"}})

	require.NoError(t, err)
	assert.Equal(t, 17, n)
}

func TestUpsert_SetsConflictAndPrefer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user_id,item_name", r.URL.Query().Get("on_conflict"))
		assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")

		raw, _ := io.ReadAll(r.Body)
		var row map[string]any
		assert.NoError(t, json.Unmarshal(raw, &row))
		assert.Equal(t, "rice", row["item_name"])

		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").Upsert(context.Background(), "shopping_predictions", map[string]any{"item_name": "rice"}, "user_id,item_name")
	require.NoError(t, err)
}

func TestDeleteWhere_RequiresFilter(t *testing.T) {
	err := NewClient("http://unused", "k").DeleteWhere(context.Background(), "shopping_predictions", nil)
	assert.Error(t, err)
}

func TestVerifyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"user-1","email":"a@b.c"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")

	user, err := c.VerifyToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)

	_, err = c.VerifyToken(context.Background(), "bad")
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
}

func TestParseContentRangeTotal(t *testing.T) {
	n, err := parseContentRangeTotal("*/0")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = parseContentRangeTotal("0-9/*")
	assert.Error(t, err)

	_, err = parseContentRangeTotal("")
	assert.Error(t, err)
}
