package deriver

import (
	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/model"
)

// AlertDetails looks up an alert by exact id
func AlertDetails(ds *dataset.Dataset, alertID string) (model.Alert, bool) {
	return ds.Alert(alertID)
}

// CommentsForAlert returns the AI comments attached to alertID in file order
func CommentsForAlert(ds *dataset.Dataset, alertID string) []model.AIComment {
	if ds == nil {
		return nil
	}
	var out []model.AIComment
	for _, c := range ds.Comments {
		if c.AlertID == alertID {
			out = append(out, c)
		}
	}
	return out
}

// CommentTypes maps each comment id to its comment type
func CommentTypes(ds *dataset.Dataset) map[string]string {
	if ds == nil {
		return map[string]string{}
	}
	types := make(map[string]string, len(ds.Comments))
	for _, c := range ds.Comments {
		if _, ok := types[c.AICommentID]; !ok {
			types[c.AICommentID] = c.CommentType
		}
	}
	return types
}
