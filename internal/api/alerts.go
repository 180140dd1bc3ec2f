package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/deriver"
)

// dataset returns the cached measurement store or answers 503
func (s *Server) dataset(c *gin.Context) (*dataset.Dataset, bool) {
	ds, err := s.cache.Get()
	if err != nil {
		s.logger.Error("Measurement store unavailable", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, codeDataUnavailable, err)
		return nil, false
	}
	return ds, true
}

func (s *Server) filter(c *gin.Context) (deriver.Filter, bool) {
	var f deriver.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, err)
		return f, false
	}
	return f, true
}

func (s *Server) listAlerts(c *gin.Context) {
	f, ok := s.filter(c)
	if !ok {
		return
	}
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{"alerts": nonNil(deriver.AlertCatalog(ds, f))})
}

func (s *Server) alertFilters(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	respondOK(c, deriver.FilterOptions(ds))
}

func (s *Server) alertsSummary(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	respondOK(c, deriver.Summary(ds))
}

func (s *Server) getAlert(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	id := c.Param("id")
	alert, found := deriver.AlertDetails(ds, id)
	if !found {
		respondError(c, http.StatusNotFound, codeNotFound, fmt.Errorf("alert %s not found", id))
		return
	}
	respondOK(c, alert)
}

// nextAlert answers the alert after :id in the catalog selected by the query filters
func (s *Server) nextAlert(c *gin.Context) {
	f, ok := s.filter(c)
	if !ok {
		return
	}
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	id := c.Param("id")
	next, found := deriver.NextAlert(deriver.AlertCatalog(ds, f), id)
	if !found {
		respondError(c, http.StatusNotFound, codeNotFound, fmt.Errorf("alert %s is not in the catalog", id))
		return
	}
	respondOK(c, gin.H{"alert_id": next})
}

func (s *Server) oilData(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{"measurements": nonNil(deriver.OilData(ds, c.Param("id")))})
}

func (s *Server) oilSnapshot(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{"snapshot": nonNil(deriver.OilSnapshot(ds, c.Param("id")))})
}

func (s *Server) telemetryWindow(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{"measurements": nonNil(deriver.TelemetryWindow(ds, c.Param("id")))})
}

func (s *Server) telemetryBreaches(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{"breaches": nonNil(deriver.TelemetryBreaches(ds, c.Param("id")))})
}

func (s *Server) telemetryTrend(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{
		"variable_name": c.Param("variable"),
		"measurements":  nonNil(deriver.VariableTrend(ds, c.Param("id"), c.Param("variable"))),
	})
}

func (s *Server) alertComments(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{"comments": nonNil(deriver.CommentsForAlert(ds, c.Param("id")))})
}
