package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/analytics"
	"github.com/t77yq/comment-evaluator/internal/deriver"
)

// analyticsRows joins every stored evaluation with its comment type. Comment
// types fall back to Unknown when the measurement store is unavailable.
func (s *Server) analyticsRows(c *gin.Context) ([]analytics.Row, bool) {
	evaluations, err := s.store.All(c.Request.Context())
	if err != nil {
		s.storageFailure(c, err)
		return nil, false
	}

	types := map[string]string{}
	if ds, err := s.cache.Get(); err != nil {
		s.logger.Warn("Comment types unavailable for analytics", zap.Error(err))
	} else {
		types = deriver.CommentTypes(ds)
	}
	return analytics.Join(evaluations, types), true
}

func (s *Server) analyticsSummary(c *gin.Context) {
	rows, ok := s.analyticsRows(c)
	if !ok {
		return
	}
	respondOK(c, analytics.Summarize(rows))
}

func (s *Server) analyticsGrades(c *gin.Context) {
	rows, ok := s.analyticsRows(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{"grades": analytics.GradeStatsByType(rows)})
}

func (s *Server) analyticsDistribution(c *gin.Context) {
	rows, ok := s.analyticsRows(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{"distribution": analytics.GradeDistribution(rows)})
}

func (s *Server) analyticsNotes(c *gin.Context) {
	rows, ok := s.analyticsRows(c)
	if !ok {
		return
	}
	respondOK(c, analytics.AnalyzeNotes(rows))
}

func (s *Server) analyticsEvaluations(c *gin.Context) {
	var f analytics.RowFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	rows, ok := s.analyticsRows(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{
		"evaluations": analytics.Filter(rows, f),
		"options":     analytics.Options(rows),
	})
}
