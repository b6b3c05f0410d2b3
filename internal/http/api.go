package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"account-service/internal/domain"
	"account-service/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth   service.AuthService
	users  service.UserService
	logger *logrus.Logger
}

func NewHandler(auth service.AuthService, users service.UserService, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		auth:   auth,
		users:  users,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), securityHeaders(), corsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		auth := api.Group("/auth")
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.GET("/me", h.requireAuth(), h.me)

		users := api.Group("/users")
		users.GET("", h.listUsers)
		users.POST("", h.createUser)
		users.GET("/:id", h.getUser)
		users.DELETE("/:id", h.requireAuth(), h.deleteUser)

		api.GET("/archive/users", h.requireAuth(), h.listArchivedUsers)
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Age      int    `json:"age"`
}

func (r registerRequest) input() service.RegisterInput {
	return service.RegisterInput{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		Age:      r.Age,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Age       int    `json:"age"`
	CreatedAt string `json:"createdAt"`
}

type AuthResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
}

type ArchivedUserResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"lastModified,omitempty"`
	URL          string  `json:"url"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.auth.Register(c.Request.Context(), req.input())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authToResponse(result))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, authToResponse(result))
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) createUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.auth.CreateUser(c.Request.Context(), req.input())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) listUsers(c *gin.Context) {
	filter := domain.UserFilter{
		Name:  c.Query("name"),
		Email: c.Query("email"),
	}

	verr := &domain.ValidationError{}
	filter.MinAge = queryInt(c, "minAge", verr)
	filter.MaxAge = queryInt(c, "maxAge", verr)
	if err := verr.Err(); err != nil {
		h.writeError(c, err)
		return
	}

	users, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) deleteUser(c *gin.Context) {
	user, err := h.users.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": userToResponse(*user)})
}

func (h *Handler) listArchivedUsers(c *gin.Context) {
	entries, err := h.users.ListArchived(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]ArchivedUserResponse, len(entries))
	for i, entry := range entries {
		resp[i] = ArchivedUserResponse{
			Key:  entry.Key,
			Size: entry.Size,
			URL:  entry.URL,
		}
		if entry.LastModified != nil && !entry.LastModified.IsZero() {
			v := entry.LastModified.Format(time.RFC3339)
			resp[i].LastModified = &v
		}
	}
	c.JSON(http.StatusOK, resp)
}

func queryInt(c *gin.Context, key string, verr *domain.ValidationError) *int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(key, "must be an integer")
		return nil
	}
	return &v
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Age:       user.Age,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func authToResponse(result *service.AuthResult) AuthResponse {
	return AuthResponse{
		User:      userToResponse(*result.User),
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
