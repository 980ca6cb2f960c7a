package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comparteride/circles-backend/pkg/logger"
)

func TestLoggingPassesStatusThrough(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("seat taken"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rides/x/join", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "seat taken", rec.Body.String())
}

func TestStatusRecorderDefaultsToOKOnWrite(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	_, err := rec.Write([]byte("ok"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.status)

	rec.WriteHeader(http.StatusTeapot)
	require.Equal(t, http.StatusOK, rec.status, "first status wins")
}
