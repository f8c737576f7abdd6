package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lumenos/lumen/internal/session"
)

// SessionLister is the read side of the in-memory session store.
type SessionLister interface {
	Sweep() int
	List() []session.Info
}

type ListSessionsOutput struct {
	Body struct {
		Sessions []session.Info `json:"sessions"`
	}
}

func RegisterSessionRoutes(api huma.API, store SessionLister) {
	huma.Register(api, huma.Operation{
		OperationID: "list-agent-sessions",
		Method:      http.MethodGet,
		Path:        "/agent/sessions",
		Summary:     "List live in-memory agent sessions",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, _ *struct{}) (*ListSessionsOutput, error) {
		// Listing is a protocol operation like any other: expired entries
		// are swept before the table is read.
		store.Sweep()

		out := &ListSessionsOutput{}
		out.Body.Sessions = store.List()

		return out, nil
	})
}
