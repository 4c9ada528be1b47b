package stubshop

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenLifetime  = time.Hour
	refreshTokenLifetime = 7 * 24 * time.Hour

	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenService mints and validates the JWT pairs the stub issues. Tokens carry
// a token_type claim so a refresh token cannot be replayed as an access token.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a token service signing with the given secret.
func NewTokenService(secret []byte) *TokenService {
	return &TokenService{secret: secret}
}

func (t *TokenService) generateToken(userID uuid.UUID, tokenType string, lifetime time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"token_type": tokenType,
		"user_id":    userID.String(),
		"exp":        time.Now().Add(lifetime).Unix(),
		"iat":        time.Now().Unix(),
		"jti":        uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(t.secret)
}

// Pair mints an access and refresh token for a user.
func (t *TokenService) Pair(userID uuid.UUID) (access, refresh string, err error) {
	access, err = t.generateToken(userID, tokenTypeAccess, accessTokenLifetime)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err = t.generateToken(userID, tokenTypeRefresh, refreshTokenLifetime)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return access, refresh, nil
}

// Access mints a fresh access token, used by the refresh endpoint.
func (t *TokenService) Access(userID uuid.UUID) (string, error) {
	return t.generateToken(userID, tokenTypeAccess, accessTokenLifetime)
}

// Parse validates a token of the wanted type and returns the user ID it names.
func (t *TokenService) Parse(raw, wantType string) (uuid.UUID, error) {
	parsed, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected claims type")
	}
	tokenType, _ := claims["token_type"].(string)
	if tokenType != wantType {
		return uuid.Nil, fmt.Errorf("token_type is %q, want %q", tokenType, wantType)
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing user_id claim")
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user_id claim: %w", err)
	}
	return userID, nil
}

// The wrapped services set their tokens as HttpOnly Lax cookies on the root
// path; the stub keeps the exact same attributes minus Secure, because it only
// ever serves plain HTTP on localhost.
func authCookie(name, value string, lifetime time.Duration) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		MaxAge:   int(lifetime.Seconds()),
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
	}
}

func setAuthCookies(c *fiber.Ctx, access, refresh string) {
	c.Cookie(authCookie(accessCookieName, access, accessTokenLifetime))
	c.Cookie(authCookie(refreshCookieName, refresh, refreshTokenLifetime))
}

func setAccessCookie(c *fiber.Ctx, access string) {
	c.Cookie(authCookie(accessCookieName, access, accessTokenLifetime))
}

func clearAuthCookies(c *fiber.Ctx) {
	expired := time.Now().Add(-time.Hour)
	for _, name := range []string{accessCookieName, refreshCookieName} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Expires:  expired,
			Path:     "/",
			HTTPOnly: true,
			SameSite: "Lax",
		})
	}
}

// RequireAuth validates the access token and sets user_id in the request
// context. The cookie is checked first, then the Authorization header, which
// matches how the wrapped user service authenticates requests.
func RequireAuth(tokens *TokenService, store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(accessCookieName)
		if raw == "" {
			header := c.Get("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				raw = strings.TrimPrefix(header, "Bearer ")
			}
		}
		if raw == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization"})
		}

		userID, err := tokens.Parse(raw, tokenTypeAccess)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid token"})
		}

		user, ok := store.UserByID(userID)
		if !ok || !user.IsActive {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid token"})
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}
