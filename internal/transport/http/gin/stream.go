package httpgin

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	redisrepo "github.com/kirinyoku/cineseat/internal/repository/redis"
	"github.com/kirinyoku/cineseat/internal/service"
)

const streamKeepAlive = 15 * time.Second

type seatStream interface {
	Subscribe(ctx context.Context, showtimeID int64, handler func(ctx context.Context, c redisrepo.SeatChange)) error
}

// @Summary  Stream seat changes (server-sent events)
// @Param    id  path  int  true  "Showtime ID"
// @Produce  text/event-stream
// @Success  200 {object} redisrepo.SeatChange "event: seats"
// @Failure  404 {object} ErrorResponse
// @Failure  503 {object} ErrorResponse "live updates disabled"
// @Router   /showtimes/{id}/seats/stream [get]
func handleSeatStream(svcs *service.Services, stream seatStream) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if stream == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "unavailable",
				Message: "live seat updates are disabled",
			})
			return
		}
		if _, err := svcs.Inventory.Showtime(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		changes := make(chan redisrepo.SeatChange, 16)
		go func() {
			defer close(changes)
			_ = stream.Subscribe(ctx, id, func(ctx context.Context, ch redisrepo.SeatChange) {
				select {
				case changes <- ch:
				case <-ctx.Done():
				}
			})
		}()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case ch, ok := <-changes:
				if !ok {
					return false
				}
				c.SSEvent("seats", ch)
				return true
			case <-keepAlive.C:
				c.SSEvent("ping", time.Now().Unix())
				return true
			case <-ctx.Done():
				return false
			}
		})
	}
}
