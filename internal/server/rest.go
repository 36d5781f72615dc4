package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lox/chiptable/internal/game"
)

// handle adapts an operation to a gin handler. The JSON body, if any, is
// decoded first and bind then copies ids from the URL over it.
func handle[T any](s *Server, op func(context.Context, T) (ResultData, error), bind func(*gin.Context, *T)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req T
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				s.writeError(c, game.ValidationError("malformed request body: "+err.Error()))
				return
			}
		}
		if bind != nil {
			bind(c, &req)
		}

		res, err := op(c.Request.Context(), req)
		if err != nil {
			s.writeError(c, err)
			return
		}

		status := http.StatusOK
		if c.Request.Method == http.MethodPost && c.FullPath() == "/api/tables" {
			status = http.StatusCreated
		}
		c.JSON(status, res)
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, data := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, data)
}
