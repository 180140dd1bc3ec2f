package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/deriver"
)

func (s *Server) files(c *gin.Context) {
	respondOK(c, gin.H{"dir": s.cache.Dir(), "files": dataset.ValidateFiles(s.cache.Dir())})
}

func (s *Server) dataStats(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	respondOK(c, deriver.Stats(ds))
}

// reload refreshes the dataset files when a fetcher is configured, then
// swaps in a new snapshot. A failed fetch falls back to the local files.
// The file query parameter forces a download of that one file only.
func (s *Server) reload(c *gin.Context) {
	file := c.Query("file")
	if file != "" && !dataset.IsKnown(file) {
		respondError(c, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: %q", dataset.ErrUnknownDataset, file))
		return
	}

	if s.fetcher != nil {
		var err error
		if file != "" {
			err = s.fetcher.FetchDataset(c.Request.Context(), file)
		} else {
			err = s.fetcher.FetchDatasets(c.Request.Context())
		}
		if err != nil {
			s.logger.Warn("Dataset fetch failed, reloading local files", zap.Error(err))
		}
	}

	ds, err := s.cache.Reload()
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, codeDataUnavailable, err)
		return
	}
	s.logger.Info("Measurement store reloaded", zap.Time("loaded_at", ds.LoadedAt))
	respondOK(c, gin.H{"loaded_at": ds.LoadedAt, "stats": deriver.Stats(ds)})
}
