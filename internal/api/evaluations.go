package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/model"
	"github.com/t77yq/comment-evaluator/internal/storage"
)

// storageFailure answers 500 for storage errors
func (s *Server) storageFailure(c *gin.Context, err error) {
	s.logger.Error("Evaluation store failure", zap.String("path", c.FullPath()), zap.Error(err))
	respondError(c, http.StatusInternalServerError, codeStorage, err)
}

func (s *Server) createEvaluation(c *gin.Context) {
	var in model.EvaluationCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	evaluation, err := s.store.Create(ctx, in)
	switch {
	case err == nil:
	case model.IsValidation(err):
		respondError(c, http.StatusBadRequest, codeValidation, err)
		return
	default:
		s.storageFailure(c, err)
		return
	}

	if err := s.publisher.EvaluationCreated(ctx, evaluation); err != nil {
		s.logger.Warn("Evaluation stored but not announced",
			zap.Int64("evaluation_id", evaluation.EvaluationID),
			zap.Error(err))
	}
	c.JSON(http.StatusCreated, evaluation)
}

func (s *Server) alertEvaluations(c *gin.Context) {
	evaluations, err := s.store.ByAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storageFailure(c, err)
		return
	}
	respondOK(c, gin.H{"evaluations": nonNil(evaluations)})
}

func (s *Server) commentEvaluations(c *gin.Context) {
	evaluations, err := s.store.ByComment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storageFailure(c, err)
		return
	}
	respondOK(c, gin.H{"evaluations": nonNil(evaluations)})
}

// commentEvaluated checks for any evaluation, or one by ?user_id= when given
func (s *Server) commentEvaluated(c *gin.Context) {
	var userID *string
	if u := strings.TrimSpace(c.Query("user_id")); u != "" {
		userID = &u
	}
	evaluated, err := s.store.IsEvaluated(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		s.storageFailure(c, err)
		return
	}
	respondOK(c, gin.H{"ai_comment_id": c.Param("id"), "evaluated": evaluated})
}

// evaluationStats reports store failures as 503 with the store location
func (s *Server) evaluationStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to read evaluation stats", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrStorage) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"error":           APIError{Message: err.Error(), Code: codeStorage},
			"database_path":   stats.Path,
			"database_exists": stats.Exists,
		})
		return
	}
	respondOK(c, stats)
}
