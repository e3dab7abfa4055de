package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/domain"
)

const (
	userIDKey  = "user_id"
	guestIDKey = "guest_id"
)

var errMissingToken = errors.New("missing bearer token")

// Identity resolves the caller. A bearer token's subject wins; otherwise, if
// guests are allowed, the caller gets a stable guest id kept in the session
// cookie.
func Identity(secret []byte, allowGuests bool) gin.HandlerFunc {
	if len(secret) == 0 {
		panic("http.Identity: secret cannot be empty")
	}
	return func(c *gin.Context) {
		uid, err := bearerUser(c, secret)
		switch {
		case err == nil:
		case errors.Is(err, errMissingToken) && allowGuests:
			uid, err = guestUser(c)
			if err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("guest session")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session error"})
				return
			}
		default:
			log.Debug().Err(err).Str("module", "adapters.http").Msg("unauthenticated request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

func bearerUser(c *gin.Context, secret []byte) (domain.UserID, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errMissingToken
	}
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	return domain.ParseUserID(claims.Subject)
}

func guestUser(c *gin.Context) (domain.UserID, error) {
	sess := sessions.Default(c)
	if id, ok := sess.Get(guestIDKey).(string); ok && id != "" {
		return domain.UserID(id), nil
	}
	id := "guest-" + uuid.NewString()
	sess.Set(guestIDKey, id)
	if err := sess.Save(); err != nil {
		return "", err
	}
	return domain.UserID(id), nil
}

func currentUser(c *gin.Context) domain.UserID {
	uid, _ := c.Get(userIDKey)
	id, _ := uid.(domain.UserID)
	return id
}
