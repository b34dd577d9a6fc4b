package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retorded/chordkv/internal/peer"
)

func newTestServer(t *testing.T) (*Server, *peer.Peer) {
	t.Helper()
	p, err := peer.New("127.0.0.1:19001", "127.0.0.1:18001", zap.NewNop())
	require.NoError(t, err)
	return New("127.0.0.1:18001", p, zap.NewNop()), p
}

func (s *Server) router() http.Handler { return s.http.Handler }

func TestStoragePutThenGet(t *testing.T) {
	s, _ := newTestServer(t)

	putReq := httptest.NewRequest(http.MethodPut, "/storage/alpha", bytes.NewReader([]byte("one")))
	putRec := httptest.NewRecorder()
	s.router().ServeHTTP(putRec, putReq)
	require.Equal(t, http.StatusOK, putRec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/storage/alpha", nil)
	getRec := httptest.NewRecorder()
	s.router().ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)
	require.Equal(t, "one", getRec.Body.String())
}

func TestStorageGetMissingKeyIs404(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/storage/nope", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimCrashRefusesStorageButNotRecover(t *testing.T) {
	s, p := newTestServer(t)
	p.SimCrash()

	req := httptest.NewRequest(http.MethodGet, "/storage/alpha", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	recoverReq := httptest.NewRequest(http.MethodGet, "/sim-recover", nil)
	recoverRec := httptest.NewRecorder()
	s.router().ServeHTTP(recoverRec, recoverReq)
	require.Equal(t, http.StatusOK, recoverRec.Code)
	require.False(t, p.Crashed())
}

func TestNodeInfoReportsSelfAsSuccessorWhenSingleton(t *testing.T) {
	s, p := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/node-info", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"successor":"`+p.Self().HTTPAddr+`"`)
}
