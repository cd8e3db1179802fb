package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"warden/internal/appeals"
	"warden/internal/storage"
)

func (s *Server) handleListPunishments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	punishments, err := s.store.ListPunishments(c.Request.Context(), s.guildID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"punishments": punishments})
}

func (s *Server) handleGetPunishment(c *gin.Context) {
	punishment, err := s.store.GetPunishment(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "punishment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, punishment)
}

func (s *Server) handleUserPunishments(c *gin.Context) {
	userID := c.Param("id")
	punishments, err := s.store.ListUserPunishments(c.Request.Context(), s.guildID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	note, err := s.store.GetUserNote(c.Request.Context(), s.guildID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"punishments": punishments, "note": note})
}

func (s *Server) handleListReports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	reports, err := s.store.ListReports(c.Request.Context(), s.guildID, c.Query("status"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (s *Server) handleReportStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	switch body.Status {
	case "Pending", "Reviewed", "Dismissed":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	if err := s.store.UpdateReportStatus(c.Request.Context(), c.Param("id"), body.Status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleGetReportSettings(c *gin.Context) {
	settings, err := s.store.GetReportSettings(c.Request.Context(), s.guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) handlePutReportSettings(c *gin.Context) {
	var settings storage.ReportSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings"})
		return
	}
	settings.GuildID = s.guildID
	if err := s.store.SaveReportSettings(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleListAppeals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := s.store.ListAppeals(c.Request.Context(), s.guildID, c.Query("status"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"appeals": list})
}

func (s *Server) handleApproveAppeal(c *gin.Context) {
	if err := s.appeals.Approve(c.Request.Context(), s.session, c.Param("id"), "dashboard"); err != nil {
		s.appealError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleDenyAppeal(c *gin.Context) {
	if err := s.appeals.Deny(c.Request.Context(), c.Param("id"), "dashboard"); err != nil {
		s.appealError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) appealError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "appeal not found"})
	case errors.Is(err, appeals.ErrAlreadyDecided):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "decision failed"})
	}
}

// handlePublicAppeal is unauthenticated: punished users reach it through the
// appeal link in their DM.
func (s *Server) handlePublicAppeal(c *gin.Context) {
	var body struct {
		PunishmentID string `json:"punishment_id" binding:"required"`
		UserID       string `json:"user_id" binding:"required"`
		Content      string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "punishment_id, user_id and content are required"})
		return
	}
	appeal, err := s.appeals.Submit(c.Request.Context(), body.PunishmentID, body.UserID, body.Content)
	if err != nil {
		switch {
		case errors.Is(err, appeals.ErrUnknownPunishment):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, appeals.ErrNotYourCase),
			errors.Is(err, appeals.ErrNotActive),
			errors.Is(err, appeals.ErrAlreadyAppealed),
			errors.Is(err, appeals.ErrEmptyContent):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"appeal_id": appeal.AppealID})
}

func (s *Server) handleGetAutomod(c *gin.Context) {
	settings, err := s.store.GetAutoModSettings(c.Request.Context(), s.guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) handlePutAutomod(c *gin.Context) {
	var settings storage.AutoModSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings"})
		return
	}
	settings.GuildID = s.guildID
	if err := s.store.SaveAutoModSettings(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	s.automod.InvalidateSettings(s.guildID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	settings, err := s.store.GetGuildSettings(c.Request.Context(), s.guildID, storage.GuildSettings{CommandPrefix: "!"})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var settings storage.GuildSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings"})
		return
	}
	settings.GuildID = s.guildID
	if err := s.store.UpsertGuildSettings(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	s.responder.Invalidate(s.guildID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleStats(c *gin.Context) {
	period := c.Param("period")
	summary, err := s.stats.Summary(c.Request.Context(), s.guildID, period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	response := gin.H{"period": period, "metrics": summary}
	if metric := c.Query("history"); metric != "" {
		buckets, _ := strconv.Atoi(c.DefaultQuery("buckets", "30"))
		history, err := s.stats.History(c.Request.Context(), s.guildID, period, metric, buckets)
		if err == nil {
			response["history"] = history
		}
	}
	c.JSON(http.StatusOK, response)
}
