package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, h gin.HandlerFunc, after gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	r := gin.New()
	r.GET("/", h, after)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func noop(*gin.Context) {}

func TestList(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { List(c, []int{1, 2}, 2) }, noop)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, map[string]interface{}{"data": []interface{}{1.0, 2.0}, "count": 2.0}, body.Data)
}

func TestAbort_StopsChain(t *testing.T) {
	reached := false
	w, body := serve(t,
		func(c *gin.Context) { Abort(c, http.StatusUnauthorized, "token invalid") },
		func(c *gin.Context) { reached = true },
	)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token invalid", body.Message)
	assert.False(t, reached)
}

func TestErrorMap_Write(t *testing.T) {
	errMissing := errors.New("missing")
	errBusy := errors.New("busy")
	m := ErrorMap{
		{Target: errMissing, Status: http.StatusNotFound, Message: "Section not found"},
		{Target: errBusy, Status: http.StatusConflict},
	}

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"fixed message", fmt.Errorf("lookup: %w", errMissing), http.StatusNotFound, "Section not found"},
		{"error text", fmt.Errorf("%w: 3", errBusy), http.StatusConflict, "busy: 3"},
		{"unmatched", errors.New("disk full"), http.StatusInternalServerError, "disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serve(t, func(c *gin.Context) { m.Write(c, tt.err) }, noop)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}
