package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

const CookieName = "reizoko_session"

// Auth issues and validates room session tokens. A session is just an
// identity (opaque user id, display name, avatar icon) — rooms are open to
// anyone with the code, so nothing here gates access.
type Auth struct {
	jwtSecret []byte
}

type Claims struct {
	Name   string `json:"name"`
	IconID string `json:"iconId,omitempty"`
	jwt.RegisteredClaims
}

func New(secret string) *Auth {
	return &Auth{jwtSecret: []byte(secret)}
}

// GrantSession allocates a user id and returns a signed session token for it.
func (a *Auth) GrantSession(name, iconID string) (token, userID string, err error) {
	userID = uuid.NewString()
	claims := &Claims{
		Name:   name,
		IconID: iconID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(90 * 24 * time.Hour)), // 3 months
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "reizoko",
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = t.SignedString(a.jwtSecret)
	return token, userID, err
}

func (a *Auth) ValidateJWT(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// Middleware decorates the request with the session identity when a valid
// token is present. Anonymous requests always pass through.
func (a *Auth) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Identity headers are set here and nowhere else; anything the client
		// sent is a spoof attempt.
		r.Header.Del("X-User-Id")
		r.Header.Del("X-User-Name")
		r.Header.Del("X-User-Icon")

		authHeader := r.Header.Get("Authorization")

		if authHeader == "" {
			cookie, err := r.Cookie(CookieName)
			if err == nil {
				authHeader = "Bearer " + cookie.Value
			}
		}

		if authHeader == "" {
			next(w, r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			next(w, r)
			return
		}

		claims, err := a.ValidateJWT(parts[1])
		if err != nil {
			next(w, r)
			return
		}

		r.Header.Set("X-User-Id", claims.Subject)
		r.Header.Set("X-User-Name", claims.Name)
		r.Header.Set("X-User-Icon", claims.IconID)
		next(w, r)
	}
}

// Identity returns the session identity the middleware attached, if any.
func Identity(r *http.Request) (userID, name, iconID string) {
	return r.Header.Get("X-User-Id"), r.Header.Get("X-User-Name"), r.Header.Get("X-User-Icon")
}
