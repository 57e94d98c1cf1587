package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func setupRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := NewTokenService(secret, time.Hour)
	return NewRouter(zap.NewNop(), NewAuthHandler(zap.NewNop(), tokens))
}

func TestAnonymousSignIn(t *testing.T) {
	router := setupRouter("test-secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/anonymous", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		UID   string `json:"uid"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.UID == "" || resp.Token == "" {
		t.Fatalf("expected uid and token, got %+v", resp)
	}

	tokens := NewTokenService("test-secret", time.Hour)
	claims, err := tokens.Parse(resp.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UID != resp.UID {
		t.Fatalf("uid claim %q does not match minted uid %q", claims.UID, resp.UID)
	}
}

func TestAnonymousSignIn_FreshUIDPerCall(t *testing.T) {
	router := setupRouter("test-secret")

	uids := make(map[string]bool)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/anonymous", nil)
		router.ServeHTTP(w, req)

		var resp struct {
			UID string `json:"uid"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		uids[resp.UID] = true
	}
	if len(uids) != 3 {
		t.Fatalf("expected fresh uid per call, got %v", uids)
	}
}

func TestAnonymousSignIn_NoSecret(t *testing.T) {
	router := setupRouter("")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/anonymous", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without secret, got %d", w.Code)
	}
}

func TestTokenServiceParse_RejectsBadSignature(t *testing.T) {
	mint := NewTokenService("secret-a", time.Hour)
	token, err := mint.Mint("uid-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := NewTokenService("secret-b", time.Hour)
	if _, err := other.Parse(token); err == nil {
		t.Fatalf("expected signature rejection")
	}
}

func TestTokenService_NotConfigured(t *testing.T) {
	var svc *TokenService
	if _, err := svc.Mint("uid"); err != ErrTokenNotConfigured {
		t.Fatalf("expected ErrTokenNotConfigured, got %v", err)
	}
	svc = NewTokenService("", time.Hour)
	if _, err := svc.Mint("uid"); err != ErrTokenNotConfigured {
		t.Fatalf("expected ErrTokenNotConfigured, got %v", err)
	}
}

func TestHealthz(t *testing.T) {
	router := setupRouter("test-secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
