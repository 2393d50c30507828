package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProbeLinksReportsOkForHealthyTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	results := ProbeLinks(context.Background(), []string{srv.URL}, time.Second)
	require.Len(t, results, 1)
	require.True(t, results[0].Ok)
	require.Equal(t, http.StatusOK, results[0].StatusCode)
}

func TestProbeLinksFallsBackToGetWhenHeadUnsupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	results := ProbeLinks(context.Background(), []string{srv.URL}, time.Second)
	require.Len(t, results, 1)
	require.True(t, results[0].Ok)
}

func TestProbeLinksReportsNotOkForNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	results := ProbeLinks(context.Background(), []string{srv.URL}, time.Second)
	require.Len(t, results, 1)
	require.False(t, results[0].Ok)
	require.Equal(t, http.StatusNotFound, results[0].StatusCode)
}
