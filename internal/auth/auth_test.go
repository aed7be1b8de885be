package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/your-org/timeclock/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	id := uuid.New()

	tok, exp, err := issuer.Issue(id, models.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry %v is not in the future", exp)
	}

	gotID, gotRole, err := issuer.Parse(tok)
	if err != nil {
		t.Fatal(err)
	}
	if gotID != id || gotRole != models.RoleAdmin {
		t.Errorf("Parse = %v, %v", gotID, gotRole)
	}
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, _, err := issuer.Issue(uuid.New(), models.RoleEmployee)
	if err != nil {
		t.Fatal(err)
	}

	issuer.now = time.Now
	if _, _, err := issuer.Parse(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestTokenWrongSecret(t *testing.T) {
	tok, _, _ := NewTokenIssuer(testSecret, time.Hour).Issue(uuid.New(), models.RoleEmployee)
	other := NewTokenIssuer("ffffffffffffffffffffffffffffffff", time.Hour)
	if _, _, err := other.Parse(tok); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func newProtected(issuer *TokenIssuer, roles ...models.Role) *gin.Engine {
	r := gin.New()
	g := r.Group("/", JWTMiddleware(issuer))
	if len(roles) > 0 {
		g.Use(RequireRole(roles...))
	}
	g.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserIDFrom(c).String())
	})
	return r
}

func TestJWTMiddleware(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	id := uuid.New()
	tok, _, _ := issuer.Issue(id, models.RoleEmployee)

	tests := []struct {
		name   string
		header string
		query  string
		roles  []models.Role
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + tok, want: http.StatusOK},
		{name: "query token", query: "?access_token=" + tok, want: http.StatusOK},
		{name: "wrong role", header: "Bearer " + tok, roles: []models.Role{models.RoleAdmin}, want: http.StatusForbidden},
		{name: "allowed role", header: "Bearer " + tok, roles: []models.Role{models.RoleAdmin, models.RoleEmployee}, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newProtected(issuer, tt.roles...)
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK && w.Body.String() != id.String() {
				t.Errorf("user id = %q", w.Body.String())
			}
		})
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		key, header string
		want        int
	}{
		{"", "", http.StatusOK},
		{"kiosk", "", http.StatusUnauthorized},
		{"kiosk", "wrong", http.StatusForbidden},
		{"kiosk", "kiosk", http.StatusOK},
	}
	for _, tt := range tests {
		r := gin.New()
		r.GET("/", APIKeyMiddleware(tt.key), func(c *gin.Context) { c.Status(http.StatusOK) })
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("X-API-Key", tt.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("key=%q header=%q: status = %d, want %d", tt.key, tt.header, w.Code, tt.want)
		}
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "s3cret!") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}

func TestDummyHash(t *testing.T) {
	hash := DummyHash()
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("dummy hash is not bcrypt: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.DefaultCost)
	}
	if DummyHash() != hash {
		t.Error("dummy hash changed between calls")
	}
	if CheckPassword(hash, "") {
		t.Error("dummy hash accepted an empty password")
	}
}

func TestTOTP(t *testing.T) {
	secret, url, err := GenerateTOTPSecret("timeclock", "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if secret == "" || url == "" {
		t.Fatal("empty secret or url")
	}

	now := time.Now()
	code, err := totp.GenerateCode(secret, now)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyTOTP(code, secret, now) {
		t.Error("valid code rejected")
	}
	if VerifyTOTP(code, secret, now.Add(10*time.Minute)) {
		t.Error("stale code accepted")
	}
}
