package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"data-audit/internal/audit"
	"data-audit/internal/auth"
	"data-audit/internal/domain"
	"data-audit/internal/export"
	"data-audit/internal/repository"
	"data-audit/internal/service"
	"data-audit/internal/storage"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users     service.UserService
	operators service.OperatorService
	tokens    *auth.Tokens
	exports   export.Manager
	storage   storage.Service
	bucket    string
	gatherer  prometheus.Gatherer
	logger    *logrus.Logger
}

type Options struct {
	Users     service.UserService
	Operators service.OperatorService
	Tokens    *auth.Tokens
	Exports   export.Manager
	Storage   storage.Service
	Bucket    string
	Gatherer  prometheus.Gatherer
	Logger    *logrus.Logger
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Handler{
		users:     opts.Users,
		operators: opts.Operators,
		tokens:    opts.Tokens,
		exports:   opts.Exports,
		storage:   opts.Storage,
		bucket:    opts.Bucket,
		gatherer:  opts.Gatherer,
		logger:    opts.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	api.Use(requestLogger(h.logger), auth.Middleware(h.tokens, h.operators))
	{
		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)

		api.POST("/users", h.createUser)
		api.GET("/users", h.listUsers)
		api.GET("/users/:id", h.getUser)
		api.PUT("/users/:id", h.updateUser)
		api.DELETE("/users/:id", h.deleteUser)
		api.GET("/users/:id/audit", h.auditTrail)
		api.POST("/users/:id/export", h.exportTrail)
		api.GET("/exports", h.listExports)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type credentialsRequest struct {
	Username         string `json:"username" binding:"required"`
	Password         string `json:"password" binding:"required"`
	RegisterPassword string `json:"register_password"`
}

type userRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, err := h.operators.Register(c.Request.Context(), req.Username, req.Password, req.RegisterPassword)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, OperatorResponse{
		ID:        op.ID,
		Username:  op.Username,
		CreatedAt: op.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, err := h.operators.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	token, expires, err := h.tokens.Issue(op)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) createUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Name, req.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Update(c.Request.Context(), id, req.Name, req.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) auditTrail(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	records, err := h.users.AuditTrail(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]AuditRecordResponse, len(records))
	for i := range records {
		resp[i] = auditRecordToResponse(records[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) exportTrail(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	if h.exports == nil {
		writeError(c, export.ErrExportDisabled)
		return
	}

	key, err := h.exports.Enqueue(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"bucket": h.bucket, "key": key})
}

func (h *Handler) listExports(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		writeError(c, export.ErrExportDisabled)
		return
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, c.Query("prefix"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidUser),
		errors.Is(err, service.ErrInvalidOperator):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRegistrationPassword),
		errors.Is(err, service.ErrUnknownPrincipal):
		status = http.StatusUnauthorized
	case errors.Is(err, repository.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, service.ErrOperatorAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, export.ErrExportDisabled),
		errors.Is(err, export.ErrNotStarted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, audit.ErrNotInserted),
		errors.Is(err, audit.ErrResolveActor),
		errors.Is(err, audit.ErrNoActor):
		status = http.StatusInternalServerError
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
