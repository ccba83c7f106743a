package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

const evaluationMapping = `{
  "mappings": {
    "properties": {
      "sessionId":          {"type": "keyword"},
      "overallScore":       {"type": "float"},
      "codingScore":        {"type": "float"},
      "communicationScore": {"type": "float"},
      "engagementScore":    {"type": "float"},
      "reasoningScore":     {"type": "float"},
      "recommendation":     {"type": "keyword"},
      "confidenceLevel":    {"type": "float"},
      "strengths":          {"type": "text"},
      "weaknesses":         {"type": "text"},
      "keyFindings": {
        "properties": {
          "type":     {"type": "keyword"},
          "severity": {"type": "keyword"},
          "source":   {"type": "keyword"},
          "message":  {"type": "text"}
        }
      },
      "summary":     {"type": "text"},
      "evaluatedAt": {"type": "date"}
    }
  }
}`

// EvaluationIndex mirrors evaluations into Elasticsearch for recruiter
// search. The document id is the session id, so re-indexing overwrites.
type EvaluationIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewEvaluationIndex(client *elasticsearch.Client, index string, log logger.Logger) *EvaluationIndex {
	return &EvaluationIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "evaluation-index", "index": index}),
	}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (x *EvaluationIndex) EnsureIndex(ctx context.Context) error {
	res, err := x.client.Indices.Exists([]string{x.index}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index: unexpected status %s", res.Status())
	}

	res, err = x.client.Indices.Create(x.index,
		x.client.Indices.Create.WithContext(ctx),
		x.client.Indices.Create.WithBody(strings.NewReader(evaluationMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index: %s", responseError(res.Status(), res.Body))
	}

	x.logger.Info("created evaluation index", nil)
	return nil
}

// Index writes eval as the session's document.
func (x *EvaluationIndex) Index(ctx context.Context, eval *models.Evaluation) error {
	body, err := json.Marshal(eval)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}

	res, err := x.client.Index(x.index, bytes.NewReader(body),
		x.client.Index.WithDocumentID(eval.SessionID),
		x.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index evaluation: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index evaluation: %s", responseError(res.Status(), res.Body))
	}
	return nil
}

func responseError(status string, body io.Reader) string {
	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&e); err != nil || e.Error.Type == "" {
		return status
	}
	return fmt.Sprintf("%s: %s: %s", status, e.Error.Type, e.Error.Reason)
}
