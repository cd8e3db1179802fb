package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"warden/internal/storage"
)

// Staff registry management. Every write flushes the staff lookup caches so
// the bot picks up the change without waiting out the TTL.

func (s *Server) handleListStaffRoles(c *gin.Context) {
	roles, err := s.store.ListStaffRoles(c.Request.Context(), s.guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

func (s *Server) handleCreateStaffRole(c *gin.Context) {
	var role storage.StaffRole
	if err := c.ShouldBindJSON(&role); err != nil || role.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a role name is required"})
		return
	}
	role.GuildID = s.guildID

	_, err := s.store.GetStaffRoleByName(c.Request.Context(), s.guildID, role.Name)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "a role with that name already exists"})
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	id, err := s.store.CreateStaffRole(c.Request.Context(), role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	s.staff.InvalidateGuild(s.guildID)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleDeleteStaffRole(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role id"})
		return
	}
	if err := s.store.DeleteStaffRole(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	s.staff.InvalidateGuild(s.guildID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleListStaffMembers(c *gin.Context) {
	members, err := s.store.ListStaffMembers(c.Request.Context(), s.guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) handlePutStaffMember(c *gin.Context) {
	var body struct {
		RoleID int64 `json:"role_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role_id is required"})
		return
	}
	if _, err := s.store.GetStaffRole(c.Request.Context(), body.RoleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	userID := c.Param("id")
	member := storage.StaffMember{GuildID: s.guildID, UserID: userID, RoleID: body.RoleID}
	if err := s.store.UpsertStaffMember(c.Request.Context(), member); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	s.staff.Invalidate(s.guildID, userID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleDeleteStaffMember(c *gin.Context) {
	userID := c.Param("id")
	if err := s.store.RemoveStaffMember(c.Request.Context(), s.guildID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	s.staff.Invalidate(s.guildID, userID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Custom command and auto response management. Writes invalidate the
// responder's guild cache the same way handlePutSettings does for the
// prefix.

func (s *Server) handleListCommands(c *gin.Context) {
	commands, err := s.store.ListCustomCommands(c.Request.Context(), s.guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": commands})
}

func (s *Server) handlePutCommand(c *gin.Context) {
	var cmd storage.CustomCommand
	if err := c.ShouldBindJSON(&cmd); err != nil || cmd.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a command name is required"})
		return
	}
	cmd.GuildID = s.guildID
	if cmd.ResponseType == "" {
		cmd.ResponseType = "text"
	}
	if err := s.store.UpsertCustomCommand(c.Request.Context(), cmd); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	s.responder.Invalidate(s.guildID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleDeleteCommand(c *gin.Context) {
	if err := s.store.DeleteCustomCommand(c.Request.Context(), s.guildID, c.Param("name")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "command not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	s.responder.Invalidate(s.guildID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleListResponses(c *gin.Context) {
	responses, err := s.store.ListAutoResponses(c.Request.Context(), s.guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"responses": responses})
}

func (s *Server) handleCreateResponse(c *gin.Context) {
	var resp storage.AutoResponse
	if err := c.ShouldBindJSON(&resp); err != nil || resp.Trigger == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a trigger is required"})
		return
	}
	resp.GuildID = s.guildID
	if resp.Type == "" {
		resp.Type = "TEXT"
	}
	id, err := s.store.AddAutoResponse(c.Request.Context(), resp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	s.responder.Invalidate(s.guildID)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleUpdateResponse(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid response id"})
		return
	}
	var resp storage.AutoResponse
	if err := c.ShouldBindJSON(&resp); err != nil || resp.Trigger == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a trigger is required"})
		return
	}
	resp.ID = id
	resp.GuildID = s.guildID
	if err := s.store.UpdateAutoResponse(c.Request.Context(), resp); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "response not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	s.responder.Invalidate(s.guildID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleDeleteResponse(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid response id"})
		return
	}
	if err := s.store.DeleteAutoResponse(c.Request.Context(), s.guildID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "response not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	s.responder.Invalidate(s.guildID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
