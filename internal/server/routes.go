package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lox/blackjack/internal/game"
)

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	api.POST("/game", s.handleOpen)
	api.GET("/game/:id", s.handleSnapshot)
	api.DELETE("/game/:id", s.handleEnd)
	api.POST("/game/:id/insurance", s.handleInsurance)
	for _, a := range []game.Action{game.ActionHit, game.ActionStand, game.ActionDouble, game.ActionSplit, game.ActionSurrender} {
		api.POST("/game/:id/"+a.String(), s.handleAction(a))
	}
	api.GET("/balance/:account", s.handleBalance)
	return r
}

// requestLogger logs every request at debug level
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rounds":      s.service.Store().Len(),
		"connections": s.ConnectionCount(),
	})
}

func (s *Server) handleOpen(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errInvalidRequest, err), game.Snapshot{})
		return
	}
	snap, err := s.service.Open(c.Request.Context(), req.Account, req.Bet)
	if err != nil {
		s.fail(c, err, snap)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap, err := s.service.Snapshot(c.Param("id"))
	if err != nil {
		s.fail(c, err, snap)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleAction(action game.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := s.service.Act(c.Request.Context(), c.Param("id"), action)
		if err != nil {
			s.fail(c, err, snap)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func (s *Server) handleInsurance(c *gin.Context) {
	var req insuranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errInvalidRequest, err), game.Snapshot{})
		return
	}
	snap, err := s.service.Insurance(c.Request.Context(), c.Param("id"), *req.PlaceBet)
	if err != nil {
		s.fail(c, err, snap)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleEnd(c *gin.Context) {
	snap, err := s.service.End(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, snap)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleBalance(c *gin.Context) {
	account := c.Param("account")
	balance, err := s.service.Balance(c.Request.Context(), account)
	if err != nil {
		s.fail(c, err, game.Snapshot{})
		return
	}
	c.JSON(http.StatusOK, BalanceResponseData{Account: account, Balance: balance})
}

// fail writes the error body with the latest snapshot when there is one
func (s *Server) fail(c *gin.Context, err error, snap game.Snapshot) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, errorData(err, snap))
}
