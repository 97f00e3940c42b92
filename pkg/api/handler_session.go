package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListSessions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	resp, err := s.deps.Sessions.ListSessions(c.Request.Context(), currentUser(c), page, pageSize)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.deps.Sessions.GetSession(c.Request.Context(), c.Param("session_id"), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleGetSessionMessages(c *gin.Context) {
	messages, err := s.deps.Sessions.GetMessages(c.Request.Context(), c.Param("session_id"), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.deps.Sessions.DeleteSession(c.Request.Context(), c.Param("session_id"), currentUser(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
