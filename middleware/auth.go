package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/sgp-fichas/fichas-api/config"
	"go.uber.org/zap"
)

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// Validate rejects impossible user ids; a missing one may still come from "sub".
func (c CustomClaims) Validate(ctx context.Context) error {
	if c.UserID < 0 {
		return errors.New("user_id must not be negative")
	}
	return nil
}

// Identity is the authenticated user behind a request or connection
type Identity struct {
	UserID   int
	Username string
}

// TokenExtractor reads the bearer token from the Authorization header or the
// "token" query parameter (browsers cannot set headers on WebSocket handshakes).
var TokenExtractor = jwtmiddleware.MultiTokenExtractor(
	jwtmiddleware.AuthHeaderTokenExtractor,
	jwtmiddleware.ParameterTokenExtractor("token"),
)

// NewTokenValidator builds an HS256 validator for the configured secret, issuer and audience
func NewTokenValidator(cfg *config.Config) (*validator.Validator, error) {
	secret := []byte(cfg.JWTSecret)
	keyFunc := func(context.Context) (interface{}, error) {
		return secret, nil
	}

	jwtValidator, err := validator.New(
		keyFunc,
		validator.HS256,
		cfg.JWTIssuer,
		[]string{cfg.JWTAudience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}
	return jwtValidator, nil
}

// IdentityFromClaims takes the user id from the user_id claim, falling back to a numeric subject
func IdentityFromClaims(claims *validator.ValidatedClaims) (Identity, error) {
	var identity Identity
	if custom, ok := claims.CustomClaims.(*CustomClaims); ok && custom != nil {
		identity.UserID = custom.UserID
		identity.Username = custom.Username
	}
	if identity.UserID == 0 {
		if id, err := strconv.Atoi(claims.RegisteredClaims.Subject); err == nil && id > 0 {
			identity.UserID = id
		}
	}
	if identity.UserID == 0 {
		return Identity{}, &AuthError{Code: "MISSING_USER_ID", Message: "Token carries no user id"}
	}
	return identity, nil
}

// ResolveIdentity validates a raw token and returns its identity
func ResolveIdentity(ctx context.Context, v *validator.Validator, token string) (Identity, error) {
	if token == "" {
		return Identity{}, &AuthError{Code: "MISSING_TOKEN", Message: "Token not provided"}
	}
	result, err := v.ValidateToken(ctx, token)
	if err != nil {
		return Identity{}, &AuthError{Code: "INVALID_TOKEN", Message: err.Error()}
	}
	claims, ok := result.(*validator.ValidatedClaims)
	if !ok {
		return Identity{}, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}
	return IdentityFromClaims(claims)
}

// EnsureValidToken is a middleware that will check the validity of our JWT.
func EnsureValidToken(jwtValidator *validator.Validator) gin.HandlerFunc {
	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		zap.L().Debug("rejected request token", zap.String("path", r.URL.Path), zap.Error(err))
		writeUnauthorized(w, "INVALID_TOKEN", "Failed to validate JWT.")
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
		jwtmiddleware.WithTokenExtractor(TokenExtractor),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			claims := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)

			identity, err := IdentityFromClaims(claims)
			if err != nil {
				writeUnauthorized(w, "MISSING_USER_ID", "Token carries no user id")
				return
			}

			passed = true
			c.Request = r
			c.Set("user_id", identity.UserID)
			c.Set("username", identity.Username)
			c.Set("validated_claims", claims)
			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		// the error handler already wrote the response
		if !passed {
			c.Abort()
		}
	}
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	body := fmt.Sprintf(`{"success":false,"error":{"code":%q,"message":%q}}`, code, message)
	if _, err := w.Write([]byte(body)); err != nil {
		zap.L().Warn("failed to write error response", zap.Error(err))
	}
}

// GetIdentity extracts the authenticated identity from the Gin context
func GetIdentity(c *gin.Context) (Identity, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return Identity{}, &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	id, ok := userID.(int)
	if !ok {
		return Identity{}, &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not an integer"}
	}

	return Identity{UserID: id, Username: c.GetString("username")}, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get("validated_claims")
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
