package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"grievance/backend/internal/config"
	"grievance/backend/internal/models"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

// Account kinds carried in the token.
const (
	KindUser  = "user"
	KindAdmin = "admin"
)

// Claims identify a logged-in citizen or admin.
type Claims struct {
	Kind       string `json:"kind"`
	Department string `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// AccountID returns the numeric subject.
func (c *Claims) AccountID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	return uint(id), err
}

// Auth видає та перевіряє HS256 токени.
type Auth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuth(secret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = config.DefaultJWTTTL
	}
	return &Auth{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue генерує JWT для акаунта
func (a *Auth) Issue(kind string, id uint, department string) (string, error) {
	now := a.now()
	claims := Claims{
		Kind:       kind,
		Department: department,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id), 10),
			Issuer:    config.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Parse validates signature, issuer and expiry.
func (a *Auth) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(config.JWTIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

type signupRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	Department string `json:"department"`
}

// problem returns a user-facing validation message, or "" when the request is valid.
func (r signupRequest) problem() string {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" {
		return "Name and email are required"
	}
	if !strings.Contains(r.Email, "@") {
		return "Invalid email address"
	}
	if len(r.Password) < config.MinPasswordLength {
		return fmt.Sprintf("Password must be at least %d characters", config.MinPasswordLength)
	}
	return ""
}

// Signup реєструє громадянина.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.problem(); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}

	user := &models.User{Name: strings.TrimSpace(req.Name), Email: req.Email, Phone: strings.TrimSpace(req.Phone)}
	if err := h.Storage.CreateUser(c.Request.Context(), user, req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusCreated, gin.H{"message": "User created successfully", "user": user})
}

// AdminSignup реєструє адміністратора департаменту.
func (h *Handler) AdminSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.problem(); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	if !models.IsDepartment(req.Department) {
		fail(c, http.StatusBadRequest, "Unknown department")
		return
	}

	admin := &models.Admin{
		Name:       strings.TrimSpace(req.Name),
		Email:      req.Email,
		Phone:      strings.TrimSpace(req.Phone),
		Department: req.Department,
	}
	if err := h.Storage.CreateAdmin(c.Request.Context(), admin, req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusCreated, gin.H{"message": "Admin created successfully", "admin": admin})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Type is "user" (default) or "admin".
	Type string `json:"type"`
}

// Login перевіряє облікові дані та повертає JWT.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "Email and password are required")
		return
	}
	ctx := c.Request.Context()

	var (
		account    any
		id         uint
		department string
		err        error
	)
	kind := KindUser
	if strings.EqualFold(req.Type, KindAdmin) {
		kind = KindAdmin
		var admin *models.Admin
		admin, err = h.Storage.AuthenticateAdmin(ctx, req.Email, req.Password)
		if err == nil {
			account, id, department = admin, admin.ID, admin.Department
		}
	} else {
		var user *models.User
		user, err = h.Storage.AuthenticateUser(ctx, req.Email, req.Password)
		if err == nil {
			account, id = user, user.ID
		}
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, err := h.Auth.Issue(kind, id, department)
	if err != nil {
		h.respondError(c, fmt.Errorf("issue token: %w", err))
		return
	}
	success(c, http.StatusOK, gin.H{"user": account, "type": kind, "token": token})
}
