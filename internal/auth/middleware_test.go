package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"vidstream/internal/apperr"
	"vidstream/pkg/models"
)

type fakeUsers map[int64]models.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (models.User, error) {
	u, ok := f[id]
	if !ok {
		return models.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

func newTestRouter(users UserLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/private", RequireJWT(testSecret, users), func(c *gin.Context) {
		u, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": u.ID})
	})
	r.GET("/optional", OptionalJWT(testSecret, users), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"viewer": ViewerID(c)})
	})
	r.GET("/creator", RequireJWT(testSecret, users), RequireCreator(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doGet(t *testing.T, r http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sign(t *testing.T, id int64) string {
	t.Helper()
	tok, err := SignJWT(testSecret, id, "u", time.Hour)
	require.NoError(t, err)
	return tok
}

func TestRequireJWT(t *testing.T) {
	users := fakeUsers{
		1: {ID: 1, Role: models.RoleViewer, IsActive: true},
		2: {ID: 2, Role: models.RoleCreator, IsActive: false},
	}
	r := newTestRouter(users)

	require.Equal(t, http.StatusUnauthorized, doGet(t, r, "/private", "").Code)
	require.Equal(t, http.StatusUnauthorized, doGet(t, r, "/private", "garbage").Code)
	require.Equal(t, http.StatusOK, doGet(t, r, "/private", sign(t, 1)).Code)

	// disabled and unknown accounts are rejected even with a valid signature
	require.Equal(t, http.StatusUnauthorized, doGet(t, r, "/private", sign(t, 2)).Code)
	require.Equal(t, http.StatusUnauthorized, doGet(t, r, "/private", sign(t, 99)).Code)
}

func TestOptionalJWT(t *testing.T) {
	users := fakeUsers{1: {ID: 1, IsActive: true}}
	r := newTestRouter(users)

	w := doGet(t, r, "/optional", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"viewer":0}`, w.Body.String())

	w = doGet(t, r, "/optional", "garbage")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"viewer":0}`, w.Body.String())

	w = doGet(t, r, "/optional", sign(t, 1))
	require.JSONEq(t, `{"viewer":1}`, w.Body.String())
}

func TestRequireCreator(t *testing.T) {
	users := fakeUsers{
		1: {ID: 1, Role: models.RoleViewer, IsActive: true},
		2: {ID: 2, Role: models.RoleCreator, IsActive: true},
	}
	r := newTestRouter(users)

	w := doGet(t, r, "/creator", sign(t, 1))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), `"forbidden"`)

	require.Equal(t, http.StatusNoContent, doGet(t, r, "/creator", sign(t, 2)).Code)
}
