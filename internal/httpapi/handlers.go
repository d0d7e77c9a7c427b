package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Sternrassler/pickup-client/internal/errs"
	"github.com/Sternrassler/pickup-client/pkg/cart"
	"github.com/Sternrassler/pickup-client/pkg/order"
	"github.com/gin-gonic/gin"
)

type signInRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
}

type availabilityRequest struct {
	Available *bool `json:"is_available" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{"database": "ok", "redis": "ok", "cache": "active"}
	ok := true

	if err := s.cfg.Remote.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		ok = false
	}
	if err := s.cfg.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		ok = false
	}
	if s.cfg.Controller != nil && !s.cfg.Controller.Active() {
		checks["cache"] = "installing"
		ok = false
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, checks)
}

func (s *Server) session(c *gin.Context) (*session, bool) {
	sess, err := s.sessions.get(c.Request.Context(), deviceID(c, s.cfg.DefaultDevice))
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		return nil, false
	}
	return sess, true
}

// bindUser remembers the device's user across engine rebuilds.
func (s *Server) bindUser(c *gin.Context, sess *session, userID string) {
	if err := s.sessions.bind(c.Request.Context(), sess.device, userID); err != nil {
		s.logger.Warn().Err(err).Str("device", sess.device).Msg("Failed to persist signed-in user")
	}
}

func (s *Server) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err, "user_id is required", nil)
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}
	s.bindUser(c, sess, req.UserID)
	if err := sess.engine.SetUser(c.Request.Context(), req.UserID); err != nil {
		abortWithClass(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.engine.View())
}

func (s *Server) signOut(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	s.bindUser(c, sess, "")
	if err := sess.engine.SetUser(c.Request.Context(), ""); err != nil {
		abortWithClass(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.engine.View())
}

// getCart refreshes from the remote store. When the refresh fails the last
// known cart is still returned, flagged stale.
func (s *Server) getCart(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := sess.engine.Refresh(c.Request.Context()); err != nil {
		c.Header("X-Cart-Stale", "true")
	}
	c.JSON(http.StatusOK, sess.engine.View())
}

func (s *Server) listOrders(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	orders, err := sess.engine.ListOrders(c.Request.Context())
	if err != nil {
		abortWithClass(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) listCatalog(c *gin.Context) {
	items, err := s.cfg.Remote.ListItems(c.Request.Context(), c.Query("category"))
	if err != nil {
		abortWithClass(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) runCommand(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err, "Unreadable request body", nil)
		return
	}

	out, err := s.commands.Dispatch(c.Request.Context(), sess.engine, c.Param("name"), json.RawMessage(body))
	if err != nil {
		// the order exists; only the remote cart cleanup is pending
		if errs.Is(err, cart.ErrCheckoutIncomplete) {
			c.JSON(http.StatusAccepted, gin.H{"result": out, "warning": err.Error()})
			return
		}
		abortWithClass(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": out})
}

func (s *Server) getNotice(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	n := sess.notice.current()
	if n == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) adminListOrders(c *gin.Context) {
	orders, err := s.cfg.Remote.ListOrders(c.Request.Context(), "")
	if err != nil {
		abortWithClass(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) adminTransitionOrder(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err, "status is required", nil)
		return
	}
	to, err := order.ParseStatus(req.Status)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err, err.Error(), nil)
		return
	}

	ctx := c.Request.Context()
	o, err := s.cfg.Remote.GetOrder(ctx, c.Param("id"))
	if err != nil {
		abortWithClass(c, err)
		return
	}
	if !order.CanTransition(o.Status, to) {
		err := errs.Newf("order %s cannot move from %s to %s", o.ID, o.Status, to)
		if o.Status.Terminal() {
			err = errs.Newf("order %s is already %s", o.ID, o.Status)
		}
		err = errs.Mark(err, cart.ErrInvalidTransition)
		abortWithError(c, http.StatusConflict, err, err.Error(), gin.H{"status": o.Status, "terminal": o.Status.Terminal()})
		return
	}

	updated, err := s.cfg.Remote.TransitionOrder(ctx, o.ID, o.Status, to)
	if err != nil {
		abortWithClass(c, err)
		return
	}
	s.logger.Info().Str("order_id", o.ID).Str("from", string(o.Status)).Str("to", string(to)).Msg("Order status changed")
	c.JSON(http.StatusOK, updated)
}

func (s *Server) adminSetAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err, "is_available is required", nil)
		return
	}
	if req.Available == nil {
		abortWithError(c, http.StatusBadRequest, errors.New("missing is_available"), "is_available is required", nil)
		return
	}

	item, err := s.cfg.Remote.SetAvailability(c.Request.Context(), c.Param("id"), *req.Available)
	if err != nil {
		abortWithClass(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
