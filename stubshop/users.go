package stubshop

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"storegate/crypto"
	"storegate/metrics"
)

// fieldErrors is the field-keyed validation error body the wrapped services
// return for 400s.
type fieldErrors map[string][]string

func (e fieldErrors) add(field, message string) {
	e[field] = append(e[field], message)
}

// UserHandler implements the account half of the API surface.
type UserHandler struct {
	store  *Store
	tokens *TokenService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(store *Store, tokens *TokenService) *UserHandler {
	return &UserHandler{store: store, tokens: tokens}
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest carries a profile update. Nil fields were absent from
// the request body, which matters for PATCH.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func profilePayload(u User) fiber.Map {
	var lastLogin interface{}
	if u.LastLogin != nil {
		lastLogin = u.LastLogin.UTC().Format(time.RFC3339)
	}
	return fiber.Map{
		"id":          u.ID.String(),
		"email":       u.Email,
		"first_name":  u.FirstName,
		"last_name":   u.LastName,
		"full_name":   u.FullName(),
		"date_joined": u.DateJoined.UTC().Format(time.RFC3339),
		"last_login":  lastLogin,
	}
}

func entirelyNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// Register creates an account and signs the caller in with cookie tokens.
// POST /api/users/register/
func (h *UserHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req.Email = strings.TrimSpace(req.Email)
	errs := fieldErrors{}
	if req.Email == "" {
		errs.add("email", "This field is required.")
	} else if !strings.Contains(req.Email, "@") {
		errs.add("email", "Enter a valid email address.")
	}
	switch {
	case req.Password == "":
		errs.add("password", "This field is required.")
	case len(req.Password) < 8:
		errs.add("password", "This password is too short. It must contain at least 8 characters.")
	case entirelyNumeric(req.Password):
		errs.add("password", "This password is entirely numeric.")
	}
	if req.Password != "" && req.Password != req.Password2 {
		errs.add("password", "Password fields didn't match.")
	}
	if len(errs) > 0 {
		return c.Status(400).JSON(errs)
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to create account"})
	}

	user, err := h.store.CreateUser(req.Email, hash, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName))
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return c.Status(400).JSON(fieldErrors{"email": {"user with this email already exists."}})
		}
		return c.Status(500).JSON(fiber.Map{"error": "Failed to create account"})
	}
	metrics.UpdateUsers(h.store.UserCount())

	access, refresh, err := h.tokens.Pair(user.ID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to issue tokens"})
	}
	setAuthCookies(c, access, refresh)

	return c.Status(201).JSON(fiber.Map{
		"user":    profilePayload(user),
		"message": "Registration successful. JWT tokens are set as HTTP-only cookies.",
	})
}

// Login verifies credentials and sets cookie tokens.
// POST /api/users/login/
func (h *UserHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(400).JSON(fieldErrors{"non_field_errors": {`Must include "email" and "password".`}})
	}

	user, ok := h.store.UserByEmail(req.Email)
	if !ok || !crypto.VerifyPassword(req.Password, user.PasswordHash) {
		metrics.IncrementAuthAttempt("failure")
		return c.Status(400).JSON(fieldErrors{"non_field_errors": {"Invalid email or password."}})
	}
	if !user.IsActive {
		metrics.IncrementAuthAttempt("failure")
		return c.Status(400).JSON(fieldErrors{"non_field_errors": {"User account is disabled."}})
	}

	h.store.TouchLogin(user.ID)
	user, _ = h.store.UserByID(user.ID)
	metrics.IncrementAuthAttempt("success")

	access, refresh, err := h.tokens.Pair(user.ID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to issue tokens"})
	}
	setAuthCookies(c, access, refresh)

	return c.JSON(fiber.Map{
		"user":    profilePayload(user),
		"message": "Login successful. JWT tokens are set as HTTP-only cookies.",
	})
}

// Refresh exchanges the refresh cookie for a new access cookie.
// POST /api/users/token/refresh/
func (h *UserHandler) Refresh(c *fiber.Ctx) error {
	raw := c.Cookies(refreshCookieName)
	if raw == "" {
		return c.Status(401).JSON(fiber.Map{"error": "Refresh token not found in cookies"})
	}

	userID, err := h.tokens.Parse(raw, tokenTypeRefresh)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired refresh token"})
	}

	access, err := h.tokens.Access(userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to issue tokens"})
	}
	setAccessCookie(c, access)

	return c.JSON(fiber.Map{
		"message": "Token refreshed successfully. New access token is set as HTTP-only cookie.",
	})
}

// Logout clears the auth cookies.
// POST /api/users/logout/
func (h *UserHandler) Logout(c *fiber.Ctx) error {
	clearAuthCookies(c)
	return c.JSON(fiber.Map{
		"message": "Logout successful. JWT cookies have been cleared.",
	})
}

// Profile returns the authenticated user's profile.
// GET /api/users/profile/
func (h *UserHandler) Profile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)
	user, ok := h.store.UserByID(userID)
	if !ok {
		return c.Status(401).JSON(fiber.Map{"error": "Invalid token"})
	}
	return c.JSON(profilePayload(user))
}

// UpdateProfile updates the name fields and returns the full profile. PUT and
// PATCH behave identically because only the two name fields are writable.
// PUT|PATCH /api/users/profile/
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	errs := fieldErrors{}
	if req.FirstName != nil && *req.FirstName != "" && strings.TrimSpace(*req.FirstName) == "" {
		errs.add("first_name", "First name cannot be empty.")
	}
	if req.LastName != nil && *req.LastName != "" && strings.TrimSpace(*req.LastName) == "" {
		errs.add("last_name", "Last name cannot be empty.")
	}
	if len(errs) > 0 {
		return c.Status(400).JSON(errs)
	}

	if req.FirstName != nil {
		trimmed := strings.TrimSpace(*req.FirstName)
		req.FirstName = &trimmed
	}
	if req.LastName != nil {
		trimmed := strings.TrimSpace(*req.LastName)
		req.LastName = &trimmed
	}

	user, err := h.store.UpdateUserName(userID, req.FirstName, req.LastName)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Invalid token"})
	}
	return c.JSON(profilePayload(user))
}
