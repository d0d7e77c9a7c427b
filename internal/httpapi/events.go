package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/Sternrassler/pickup-client/pkg/notify"
	"github.com/gin-gonic/gin"
)

// streamEvents relays notification changes as Server-Sent Events. Staff see
// every order; customers see their own orders. Both see catalog changes.
func (s *Server) streamEvents(c *gin.Context) {
	if s.cfg.Bridge == nil {
		abortWithError(c, http.StatusServiceUnavailable, errors.New("no notification bridge"), "Notifications are not configured", nil)
		return
	}

	filter := notify.Filter{Catalog: true}
	if isStaff(c, s.cfg.StaffToken) {
		filter.AllOrders = true
	} else {
		sess, ok := s.session(c)
		if !ok {
			return
		}
		filter.UserID = sess.engine.UserID()
	}

	ctx := c.Request.Context()
	changes := make(chan notify.Change, 16)
	sub, err := s.cfg.Bridge.Subscribe(ctx, filter, func(ch notify.Change) {
		select {
		case changes <- ch:
		default:
			s.logger.Warn().Str("row_id", ch.RowID).Msg("Event stream too slow, change dropped")
		}
	})
	if err != nil {
		abortWithError(c, http.StatusBadGateway, err, "Subscription failed", nil)
		return
	}
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"user_id": filter.UserID, "all_orders": filter.AllOrders})
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case ch := <-changes:
			c.SSEvent("change", ch)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
