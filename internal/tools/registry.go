package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lumenos/lumen/internal/domain"
)

// ErrUnknownTool is returned when a requested tool name is not registered.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Tool is one named, schema-described capability the model may invoke.
// Execute performs the side effect locally and reports the outcome; it must
// surface collaborator failures as a failed ToolResult rather than panicking.
type Tool interface {
	Descriptor() domain.ToolDescriptor
	Execute(ctx context.Context, args map[string]any) (*domain.ToolResult, error)
}

// Registry maps tool names to implementations. Different UI surfaces may
// register different tool sets depending on which application windows exist.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool under its descriptor name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Descriptor().Name] = t
}

// RegisterAll registers every tool in the slice.
func (r *Registry) RegisterAll(ts []Tool) {
	for _, t := range ts {
		r.Register(t)
	}
}

// Unregister removes a tool by name. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("tools.Registry.Get(%q): %w", name, ErrUnknownTool)
	}
	return t, nil
}

// Definitions returns the model-facing catalog, sorted by name. Execution
// functions never cross the wire; only name, description, and parameter
// schema do.
func (r *Registry) Definitions() []domain.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Func adapts a descriptor and a function into a Tool, for surfaces that
// register ad hoc capabilities.
type Func struct {
	Desc domain.ToolDescriptor
	Run  func(ctx context.Context, args map[string]any) (*domain.ToolResult, error)
}

func (f *Func) Descriptor() domain.ToolDescriptor { return f.Desc }

func (f *Func) Execute(ctx context.Context, args map[string]any) (*domain.ToolResult, error) {
	return f.Run(ctx, args)
}
