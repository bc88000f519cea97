package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerAnnounce(t *testing.T) {
	var gotSecret, gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.URL.Query().Get("secret")
		gotPath = r.URL.Path
		gotMethod = r.Method
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":        true,
			"message":        "sweep completed",
			"processedDraws": []string{"d1", "d2"},
			"skipped":        1,
			"failed":         0,
		})
	}))
	defer srv.Close()

	rsp, err := triggerAnnounce(context.Background(), srv.Client(), srv.URL+"/", "s&cret")
	require.NoError(t, err)
	assert.Equal(t, "s&cret", gotSecret)
	assert.Equal(t, "/v1/cron/announce", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, []string{"d1", "d2"}, rsp.Processed)
	assert.Equal(t, 1, rsp.Skipped)
}

func TestTriggerAnnounceUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "unauthorized"})
	}))
	defer srv.Close()

	_, err := triggerAnnounce(context.Background(), srv.Client(), srv.URL, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
