package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/shared"
)

// RunService triggers evaluation runs and reads their progress over REST.
type RunService struct {
	api     *APIService
	backend shared.BackendConfig
	logger  *log.Logger
}

// NewRunService creates a run service using api for transport and backend for paths.
func NewRunService(api *APIService, backend shared.BackendConfig, logger *log.Logger) *RunService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RunService{api: api, backend: backend, logger: shared.WithLogger(logger, "component", "runs")}
}

// ExecuteURL returns the execute endpoint for runID.
func (s *RunService) ExecuteURL(runID string) string {
	return s.backend.ExecuteURL(runID)
}

// ExecuteRun POSTs to executeURL (or the configured execute endpoint when empty)
// and classifies the response.
//
// The error is a [*TokenExpiredError] when the backend's token expired and a
// [*RunError] for every other rejection; transport failures wrap [shared.ErrAPIRequest].
func (s *RunService) ExecuteRun(ctx context.Context, runID, executeURL string) error {
	if executeURL == "" {
		executeURL = s.ExecuteURL(runID)
	}

	s.logger.Info("executing run", "run", runID, "url", executeURL)
	resp, err := s.api.Post(ctx, executeURL, nil)
	if err != nil {
		return err
	}

	s.logger.Debug("execute response", "run", runID, "status", resp.StatusCode, "json", resp.IsJSON)
	return ClassifyExecuteResponse(resp)
}

// ClassifyExecuteResponse maps an execute response to nil or a typed error.
func ClassifyExecuteResponse(resp *APIResponse) error {
	// Bodies come from arbitrary producers, so fields are read loosely and a
	// field of the wrong type is treated as absent.
	body := jsonObject(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		tokErr := &TokenExpiredError{Message: defaultTokenMessage, Instructions: models.DefaultTokenInstructions}
		if steps := instructionsField(body); len(steps) > 0 {
			tokErr.Instructions = steps
		}
		return tokErr
	}

	if !resp.OK() {
		if resp.IsJSON {
			if stringField(body, "type") == models.ErrorTypeTokenExpired {
				tokErr := &TokenExpiredError{Message: stringField(body, "message"), Instructions: instructionsField(body)}
				if len(tokErr.Instructions) == 0 {
					tokErr.Instructions = models.DefaultTokenInstructions
				}
				return tokErr
			}

			msg := firstNonEmpty(stringField(body, "message"), stringField(body, "error"), defaultRunFailure)
			return &RunError{StatusCode: resp.StatusCode, Message: msg}
		}

		if strings.Contains(string(resp.Body), "pattern") {
			return &RunError{StatusCode: resp.StatusCode, Message: formatErrorMessage, Format: true}
		}
		msg := fmt.Sprintf("Server error: %d %s", resp.StatusCode, resp.StatusText())
		return &RunError{StatusCode: resp.StatusCode, Message: msg, Format: true}
	}

	if !resp.IsJSON {
		return &RunError{StatusCode: resp.StatusCode, Message: formatErrorMessage, Format: true}
	}
	if !truthyField(body, "success") {
		return &RunError{StatusCode: resp.StatusCode, Message: firstNonEmpty(stringField(body, "message"), defaultNotSuccessful)}
	}
	return nil
}

// jsonObject returns the decoded body when it is a JSON object, else nil.
func jsonObject(resp *APIResponse) map[string]any {
	m, _ := resp.JSONData.(map[string]any)
	return m
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

// instructionsField accepts the numbered string form or a list of strings.
func instructionsField(body map[string]any) models.Instructions {
	switch v := body["instructions"].(type) {
	case string:
		return models.ParseInstructions(v)
	case []any:
		var steps models.Instructions
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				steps = append(steps, s)
			}
		}
		return steps
	}
	return nil
}

func truthyField(body map[string]any, key string) bool {
	raw, err := json.Marshal(body[key])
	if err != nil {
		return false
	}
	return models.Truthy(raw)
}

// FetchProgress reads the current progress of runID; a missing run is [shared.ErrRunNotFound].
func (s *RunService) FetchProgress(ctx context.Context, runID string) (*models.ProgressEvent, error) {
	resp, err := s.api.Get(ctx, s.backend.ProgressPath+"/"+url.PathEscape(runID))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, runID)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: progress for %s: %d %s", shared.ErrAPIRequest, runID, resp.StatusCode, resp.StatusText())
	}

	var ev models.ProgressEvent
	if err := resp.Decode(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListProgress returns every tracked run keyed by run id.
func (s *RunService) ListProgress(ctx context.Context) (map[string]models.ProgressEvent, error) {
	resp, err := s.api.Get(ctx, s.backend.ProgressPath+"/all")
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: list progress: %d %s", shared.ErrAPIRequest, resp.StatusCode, resp.StatusText())
	}

	runs := map[string]models.ProgressEvent{}
	if err := resp.Decode(&runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Statistics returns aggregated counts of tracked runs.
func (s *RunService) Statistics(ctx context.Context) (*models.Statistics, error) {
	resp, err := s.api.Get(ctx, s.backend.ProgressPath+"/statistics")
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: statistics: %d %s", shared.ErrAPIRequest, resp.StatusCode, resp.StatusText())
	}

	var stats models.Statistics
	if err := resp.Decode(&stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
