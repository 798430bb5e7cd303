package dashboard

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookie = "rotaviz_session"

// SessionSigner holds an Ed25519 keypair for issuing and verifying
// operator session tokens.
type SessionSigner struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	Issuer  string
	TTL     time.Duration
}

// NewSessionSigner creates a signer from base64-encoded ed25519 private
// key bytes. If privB64 is empty it generates an ephemeral key, which is
// fine for a single instance: sessions just do not survive a restart.
func NewSessionSigner(privB64, issuer string, ttl time.Duration) (*SessionSigner, error) {
	var priv ed25519.PrivateKey
	if privB64 == "" {
		_, priv, _ = ed25519.GenerateKey(rand.Reader)
	} else {
		raw, err := base64.StdEncoding.DecodeString(privB64)
		if err != nil {
			return nil, err
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, errors.New("invalid ed25519 private key size")
		}
		priv = ed25519.PrivateKey(raw)
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionSigner{
		private: priv,
		public:  priv.Public().(ed25519.PublicKey),
		Issuer:  issuer,
		TTL:     ttl,
	}, nil
}

// Sign issues a session JWT for the signed-in principal.
func (s *SessionSigner) Sign(email string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.Issuer,
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.private)
}

// Verify checks a session token and returns the principal's email.
func (s *SessionSigner) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.public, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("session token has no subject")
	}
	return claims.Subject, nil
}

// checkCredentials compares the submitted credentials against the
// configured operator account.
func (s *Server) checkCredentials(email, password string) bool {
	if email == "" || email != s.config.OperatorEmail {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.config.OperatorPasswordHash), []byte(password)) == nil
}

// requireSession gates a handler behind a valid session cookie. Without a
// principal the dashboard offers nothing but the login prompt.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "sign in required",
			})
			return
		}

		email, err := s.signer.Verify(cookie.Value)
		if err != nil {
			s.logger.Debug("rejected session token", "error", err)
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "session expired, sign in again",
			})
			return
		}

		r.Header.Set("X-Principal", email)
		next(w, r)
	}
}

// handleLogin issues a session cookie for valid operator credentials.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid login payload"})
		return
	}

	if !s.checkCredentials(req.Email, req.Password) {
		s.logger.Warn("rejected login attempt", "email", req.Email)
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}

	token, err := s.signer.Sign(req.Email)
	if err != nil {
		s.logger.Error("failed to sign session token", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to open session"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.signer.TTL.Seconds()),
	})

	s.logger.Info("operator signed in", "email", req.Email)
	s.writeJSON(w, http.StatusOK, map[string]string{"email": req.Email})
}

// handleLogout clears the session.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}
