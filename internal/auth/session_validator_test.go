package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionCookieName    = "app_session"
	testSessionIssuer        = "askgov-auth"
	testSessionUserID        = "staff-123"
	testSessionUserEmail     = "staff@agency.gov"
	testSessionAgencyID      = uint(42)
)

func newTestValidator(t *testing.T, clockNow time.Time) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		Issuer:        testSessionIssuer,
		CookieName:    testSessionCookieName,
		Clock: func() time.Time {
			return clockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func signStaffToken(t *testing.T, claims StaffClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSessionSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func staffClaimsAt(clockNow time.Time) StaffClaims {
	return StaffClaims{
		UserID:    testSessionUserID,
		UserEmail: testSessionUserEmail,
		AgencyID:  testSessionAgencyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testSessionIssuer,
			Subject:   testSessionUserID,
			IssuedAt:  jwt.NewNumericDate(clockNow.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(clockNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(clockNow.Add(time.Hour)),
		},
	}
}

func TestSessionValidatorValidateToken(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)

	claims, err := validator.ValidateToken(signStaffToken(t, staffClaimsAt(clockNow)))
	if err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	if claims.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
	if claims.AgencyID != testSessionAgencyID {
		t.Fatalf("unexpected agency id: %d", claims.AgencyID)
	}
}

func TestSessionValidatorRejectsInvalidTokens(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)

	expired := staffClaimsAt(clockNow)
	expired.IssuedAt = jwt.NewNumericDate(clockNow.Add(-2 * time.Hour))
	expired.NotBefore = nil
	expired.ExpiresAt = jwt.NewNumericDate(clockNow.Add(-time.Hour))

	foreignIssuer := staffClaimsAt(clockNow)
	foreignIssuer.Issuer = "someone-else"

	withoutAgency := staffClaimsAt(clockNow)
	withoutAgency.AgencyID = 0

	withoutSubject := staffClaimsAt(clockNow)
	withoutSubject.Subject = ""

	testCases := []struct {
		name   string
		token  string
		target error
	}{
		{name: "empty", token: " ", target: ErrMissingSessionToken},
		{name: "garbage", token: "not-a-jwt", target: ErrInvalidSessionToken},
		{name: "expired", token: signStaffToken(t, expired), target: ErrExpiredSessionToken},
		{name: "foreign issuer", token: signStaffToken(t, foreignIssuer), target: ErrInvalidSessionToken},
		{name: "missing agency", token: signStaffToken(t, withoutAgency), target: ErrMissingStaffAgency},
		{name: "missing subject", token: signStaffToken(t, withoutSubject), target: ErrMissingSessionSubject},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := validator.ValidateToken(testCase.token)
			if !errors.Is(err, testCase.target) {
				t.Fatalf("expected %v, got %v", testCase.target, err)
			}
		})
	}
}

func TestSessionValidatorValidateRequestUsesCookie(t *testing.T) {
	clockNow := time.Now()
	validator := newTestValidator(t, clockNow)

	request := httptest.NewRequest(http.MethodGet, "/agency/posts/answerable", http.NoBody)
	request.AddCookie(&http.Cookie{
		Name:  testSessionCookieName,
		Value: signStaffToken(t, staffClaimsAt(clockNow)),
	})

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
}

func TestSessionValidatorValidateRequestPrefersBearer(t *testing.T) {
	clockNow := time.Now()
	validator := newTestValidator(t, clockNow)

	request := httptest.NewRequest(http.MethodPost, "/posts", http.NoBody)
	request.Header.Set("Authorization", "Bearer "+signStaffToken(t, staffClaimsAt(clockNow)))
	request.AddCookie(&http.Cookie{Name: testSessionCookieName, Value: "stale"})

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.AgencyID != testSessionAgencyID {
		t.Fatalf("unexpected agency id: %d", claims.AgencyID)
	}

	if _, err := validator.ValidateRequest(httptest.NewRequest(http.MethodGet, "/posts", http.NoBody)); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestNewSessionValidatorRequiresConfiguration(t *testing.T) {
	if _, err := NewSessionValidator(SessionValidatorConfig{Issuer: "i", CookieName: "c"}); !errors.Is(err, ErrMissingSessionSigningKey) {
		t.Fatalf("expected missing signing key, got %v", err)
	}
	if _, err := NewSessionValidator(SessionValidatorConfig{SigningSecret: []byte("s"), CookieName: "c"}); !errors.Is(err, ErrMissingSessionIssuer) {
		t.Fatalf("expected missing issuer, got %v", err)
	}
	if _, err := NewSessionValidator(SessionValidatorConfig{SigningSecret: []byte("s"), Issuer: "i"}); !errors.Is(err, ErrMissingSessionCookieName) {
		t.Fatalf("expected missing cookie name, got %v", err)
	}
}
