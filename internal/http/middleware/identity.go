package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the Gin context key holding the authenticated user ID.
const UserIDKey = "userID"

const (
	userNameKey    = "userName"
	headerUserID   = "X-User-ID"
	headerUserName = "X-User-Name"
	maxUserIDLen   = 64
	maxUserNameLen = 120
)

var (
	errMissingIdentity = errors.New("missing identity")
	errBadToken        = errors.New("invalid bearer token")
)

// UserUpsert records the caller so later fan-outs can render their name.
type UserUpsert func(ctx context.Context, id, name string) error

// IdentityOptions configures Identity.
type IdentityOptions struct {
	// JWTSecret switches identity to HS256 bearer tokens (claims sub, name).
	// When empty the X-User-ID and X-User-Name headers are trusted.
	JWTSecret string
	// Upsert, when set, is called for every authenticated request.
	Upsert UserUpsert
}

// Identity resolves the caller and stores it under UserIDKey. Requests
// without a usable identity are rejected with 401.
func Identity(opts IdentityOptions) gin.HandlerFunc {
	secret := []byte(opts.JWTSecret)

	return func(c *gin.Context) {
		var (
			id, name string
			err      error
		)
		if len(secret) > 0 {
			id, name, err = fromBearer(c.GetHeader("Authorization"), secret)
		} else {
			id, name, err = fromHeaders(c)
		}
		if err != nil {
			identityFailures.WithLabelValues(failureReason(err)).Inc()
			abortJSON(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		if opts.Upsert != nil {
			if err := opts.Upsert(c.Request.Context(), id, name); err != nil {
				identityFailures.WithLabelValues("upsert").Inc()
				LoggerFrom(c).Error().Err(err).Str("user_id", id).Msg("upsert user")
				abortJSON(c, http.StatusInternalServerError, "internal_error", "could not record user")
				return
			}
		}

		c.Set(UserIDKey, id)
		if name != "" {
			c.Set(userNameKey, name)
		}
		c.Next()
	}
}

// UserID returns the identity stored by Identity, or "" when absent.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(UserIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func fromHeaders(c *gin.Context) (string, string, error) {
	id := strings.TrimSpace(c.GetHeader(headerUserID))
	if id == "" {
		return "", "", errMissingIdentity
	}
	if len(id) > maxUserIDLen {
		return "", "", errors.New("user id too long")
	}
	return id, clipName(c.GetHeader(headerUserName)), nil
}

func fromBearer(header string, secret []byte) (string, string, error) {
	raw, found := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !found || strings.TrimSpace(raw) == "" {
		return "", "", errMissingIdentity
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", "", errBadToken
	}

	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" || len(sub) > maxUserIDLen {
		return "", "", errBadToken
	}
	name, _ := claims["name"].(string)
	return strings.TrimSpace(sub), clipName(name), nil
}

func clipName(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxUserNameLen {
		s = string([]rune(s)[:maxUserNameLen])
	}
	return s
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, errMissingIdentity):
		return "missing"
	case errors.Is(err, errBadToken):
		return "bad_token"
	default:
		return "invalid"
	}
}

// abortJSON writes the API error envelope and stops the chain.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
