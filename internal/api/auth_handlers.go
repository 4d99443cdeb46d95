package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/apperr"
	"github.com/safar/shopcraft/internal/auth"
	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
	"github.com/safar/shopcraft/internal/store"
)

type registerRequest struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=6,max=72"`
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

var errBadCredentials = apperr.New(apperr.Unauthenticated, "invalid email or password")

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	user, err := store.CreateUser(c.Request.Context(), h.db, store.CreateUserParams{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := store.GetUserByEmail(c.Request.Context(), h.db, req.Email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			h.respondError(c, errBadCredentials)
			return
		}
		h.respondError(c, err)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		h.respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *Handler) Me(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	user, err := store.GetUser(c.Request.Context(), h.db, principal.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, authResponse{User: user, Token: token, ExpiresAt: expiresAt})
}
