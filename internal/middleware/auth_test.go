package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/vault-ai/internal/service/auth"
	"github.com/ashwinyue/vault-ai/internal/testutil"
)

const testSecret = "middleware-test-secret"

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireAuth(auth.NewService(testSecret)), func(c *gin.Context) {
		userID, _ := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{
			"userId": userID,
			"orgId":  GetOrganizationID(c),
		})
	})
	return r
}

func doProtected(t *testing.T, r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid error envelope: %v", err)
	}
	return envelope.Error.Code
}

func TestRequireAuth_ValidToken(t *testing.T) {
	r := newAuthRouter()
	token := testutil.MintToken(t, testSecret, nil)

	w := doProtected(t, r, "Bearer "+token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp["userId"] != "user-1" {
		t.Errorf("userId = %q, want user-1", resp["userId"])
	}
	if resp["orgId"] != "org-1" {
		t.Errorf("orgId = %q, want org-1", resp["orgId"])
	}
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	w := doProtected(t, newAuthRouter(), "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "UNAUTHORIZED" {
		t.Errorf("error code = %q, want UNAUTHORIZED", code)
	}
}

func TestRequireAuth_BadScheme(t *testing.T) {
	w := doProtected(t, newAuthRouter(), "Basic dXNlcjpwYXNz")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "UNAUTHORIZED" {
		t.Errorf("error code = %q, want UNAUTHORIZED", code)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	r := newAuthRouter()
	token := testutil.MintToken(t, testSecret, map[string]interface{}{
		"exp": time.Now().Add(-time.Hour).Unix(),
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
	})

	w := doProtected(t, r, "Bearer "+token)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "TOKEN_EXPIRED" {
		t.Errorf("error code = %q, want TOKEN_EXPIRED", code)
	}
}

func TestRequireAuth_WrongSecret(t *testing.T) {
	r := newAuthRouter()
	token := testutil.MintToken(t, "another-secret", nil)

	w := doProtected(t, r, "Bearer "+token)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "INVALID_TOKEN" {
		t.Errorf("error code = %q, want INVALID_TOKEN", code)
	}
}
