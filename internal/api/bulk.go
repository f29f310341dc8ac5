package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loykin/catalogdb/internal/bulk"
	"github.com/loykin/catalogdb/internal/catalog"
)

const (
	actionUpdateStatus = "update_status"
	actionAdjustPrice  = "adjust_price"
	actionDelete       = "delete"
)

type bulkRequest struct {
	Action     string   `json:"action" binding:"required"`
	ProductIDs []string `json:"product_ids" binding:"required"`
	Status     string   `json:"status"`
	Percent    float64  `json:"percent"`
}

// handler turns the request into the per-product step.
func (s *Server) bulkHandler(req bulkRequest) (bulk.Handler, error) {
	switch req.Action {
	case actionUpdateStatus:
		status, err := catalog.ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, id string) error {
			repo := s.productRepo()
			p, err := repo.Get(ctx, id)
			if err != nil {
				return err
			}
			p.Status = status
			_, err = repo.Update(ctx, p)
			return err
		}, nil
	case actionAdjustPrice:
		if req.Percent <= -100 {
			return nil, fmt.Errorf("percent must be greater than -100")
		}
		factor := 1 + req.Percent/100
		return func(ctx context.Context, id string) error {
			repo := s.productRepo()
			p, err := repo.Get(ctx, id)
			if err != nil {
				return err
			}
			p.Price = math.Round(p.Price*factor*100) / 100
			_, err = repo.Update(ctx, p)
			return err
		}, nil
	case actionDelete:
		return func(ctx context.Context, id string) error {
			return s.productRepo().Delete(ctx, id)
		}, nil
	default:
		return nil, fmt.Errorf("unknown bulk action %q", req.Action)
	}
}

func bulkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bulk.ErrNotFound):
		abort(c, http.StatusNotFound, err)
	case errors.Is(err, bulk.ErrNotRunning):
		abort(c, http.StatusConflict, err)
	default:
		abort(c, http.StatusInternalServerError, err)
	}
}

func (s *Server) submitBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	h, err := s.bulkHandler(req)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	op, err := s.bulk.Submit(c.Request.Context(), req.Action, req.ProductIDs, h)
	if err != nil {
		if errors.Is(err, bulk.ErrNoItems) {
			abort(c, http.StatusBadRequest, err)
			return
		}
		bulkError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, op)
}

func (s *Server) listBulk(c *gin.Context) {
	ops, err := s.bulk.List(c.Request.Context())
	if err != nil {
		bulkError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops})
}

func (s *Server) getBulk(c *gin.Context) {
	op, err := s.bulk.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		bulkError(c, err)
		return
	}
	c.JSON(http.StatusOK, op)
}

func (s *Server) cancelBulk(c *gin.Context) {
	if err := s.bulk.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		bulkError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// streamBulk sends progress as server-sent events until the operation
// finishes or the client goes away.
func (s *Server) streamBulk(c *gin.Context) {
	ctx := c.Request.Context()
	events, unsubscribe, err := s.bulk.Subscribe(ctx, c.Param("id"))
	if err != nil {
		bulkError(c, err)
		return
	}
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent("progress", ev)
			c.Writer.Flush()
		}
	}
}
