package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"rentflow/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestFromError_MapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{errors.NotFound("租约不存在"), http.StatusNotFound, "租约不存在"},
		{fmt.Errorf("wrap: %w", errors.Conflict("unit already leased")), http.StatusConflict, "unit already leased"},
		{errors.InvalidState("租约已终止"), http.StatusConflict, "租约已终止"},
		{errors.Validation("金额必须大于0"), http.StatusBadRequest, "金额必须大于0"},
		{gorm.ErrRecordNotFound, http.StatusNotFound, "记录不存在"},
		{fmt.Errorf("pq: connection reset"), http.StatusInternalServerError, "服务器内部错误"},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		FromError(c, tc.err)

		assert.Equal(t, tc.status, w.Code)
		resp := decode(t, w)
		assert.Equal(t, tc.msg, resp.Error)
		assert.Equal(t, tc.status, resp.Code)
	}
}

func TestSuccess_Envelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Success(c, gin.H{"id": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, errors.CodeSuccess, resp.Code)
	assert.Empty(t, resp.Error)
	assert.Equal(t, map[string]interface{}{"id": float64(1)}, resp.Data)
}
