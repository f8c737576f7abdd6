// Package v1 exposes the JSON inspection API: archived run events and live
// session listings. The streaming protocol itself lives under /api/agent and
// never goes through here.
package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lumenos/lumen/internal/domain"
)

type ListRunEventsInput struct {
	SessionID string `path:"sessionId" minLength:"1" doc:"Server session ID the run executed under"`
	Limit     int    `query:"limit" minimum:"1" maximum:"500" default:"100" doc:"Max results"`
	Offset    int    `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListRunEventsOutput struct {
	Body struct {
		Events []*domain.RunLogEntry `json:"events"`
		Total  int64                 `json:"total"`
	}
}

func RegisterRunRoutes(api huma.API, repo domain.RunLogRepository) {
	huma.Register(api, huma.Operation{
		OperationID: "list-run-events",
		Method:      http.MethodGet,
		Path:        "/runs/{sessionId}/events",
		Summary:     "List archived events for one run",
		Tags:        []string{"Runs"},
	}, func(ctx context.Context, input *ListRunEventsInput) (*ListRunEventsOutput, error) {
		events, err := repo.ListBySession(ctx, input.SessionID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list run events", err)
		}

		total, err := repo.CountBySession(ctx, input.SessionID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count run events", err)
		}

		out := &ListRunEventsOutput{}
		out.Body.Events = events
		out.Body.Total = total

		return out, nil
	})
}
