// Package dashboard is the moderation API consumed by the web UI: JWT login,
// punishment/report/appeal browsing, automod configuration and stats. It
// also hosts the public appeal submission endpoint and /metrics.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"warden/internal/appeals"
	"warden/internal/automod"
	"warden/internal/config"
	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/responder"
	"warden/internal/staff"
	"warden/internal/stats"
	"warden/internal/storage"
)

type Server struct {
	cfg       config.DashboardConfig
	guildID   string
	store     *storage.Store
	stats     *stats.Service
	appeals   *appeals.Service
	automod   *automod.Evaluator
	responder *responder.Service
	staff     *staff.Service
	metrics   *metrics.Set
	session   moderation.Session
	logger    *zap.Logger
	server    *http.Server
}

func New(cfg config.DashboardConfig, guildID string, store *storage.Store, statsSvc *stats.Service, appealsSvc *appeals.Service, evaluator *automod.Evaluator, responderSvc *responder.Service, staffSvc *staff.Service, m *metrics.Set, session moderation.Session, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		guildID:   guildID,
		store:     store,
		stats:     statsSvc,
		appeals:   appealsSvc,
		automod:   evaluator,
		responder: responderSvc,
		staff:     staffSvc,
		metrics:   m,
		session:   session,
		logger:    logger,
	}
}

func (s *Server) Start() error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("dashboard listening", zap.String("addr", s.cfg.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("dashboard server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := router.Group("/api")
	api.POST("/auth/login", s.handleLogin)
	api.POST("/public/appeals", s.handlePublicAppeal)

	authed := api.Group("", s.requireAuth())
	authed.GET("/punishments", s.handleListPunishments)
	authed.GET("/punishments/:id", s.handleGetPunishment)
	authed.GET("/users/:id/punishments", s.handleUserPunishments)
	authed.GET("/reports", s.handleListReports)
	authed.PATCH("/reports/:id/status", s.handleReportStatus)
	authed.GET("/reports/settings", s.handleGetReportSettings)
	authed.PUT("/reports/settings", s.handlePutReportSettings)
	authed.GET("/appeals", s.handleListAppeals)
	authed.POST("/appeals/:id/approve", s.handleApproveAppeal)
	authed.POST("/appeals/:id/deny", s.handleDenyAppeal)
	authed.GET("/automod", s.handleGetAutomod)
	authed.PUT("/automod", s.handlePutAutomod)
	authed.GET("/settings", s.handleGetSettings)
	authed.PUT("/settings", s.handlePutSettings)
	authed.GET("/staff/roles", s.handleListStaffRoles)
	authed.POST("/staff/roles", s.handleCreateStaffRole)
	authed.DELETE("/staff/roles/:id", s.handleDeleteStaffRole)
	authed.GET("/staff/members", s.handleListStaffMembers)
	authed.PUT("/staff/members/:id", s.handlePutStaffMember)
	authed.DELETE("/staff/members/:id", s.handleDeleteStaffMember)
	authed.GET("/commands", s.handleListCommands)
	authed.POST("/commands", s.handlePutCommand)
	authed.DELETE("/commands/:name", s.handleDeleteCommand)
	authed.GET("/responses", s.handleListResponses)
	authed.POST("/responses", s.handleCreateResponse)
	authed.PUT("/responses/:id", s.handleUpdateResponse)
	authed.DELETE("/responses/:id", s.handleDeleteResponse)
	authed.GET("/stats/:period", s.handleStats)
	return router
}

func (s *Server) Shutdown(ctx context.Context) {
	if s.server != nil {
		_ = s.server.Shutdown(ctx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("dashboard request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var body struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}
	if s.cfg.AdminPassword == "" || body.Password != s.cfg.AdminPassword {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	ttl := time.Duration(s.cfg.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	expiresAt := time.Now().Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token signing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": signed, "expires_at": expiresAt.Unix()})
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(s.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}
