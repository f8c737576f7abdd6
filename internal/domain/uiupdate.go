package domain

// UIUpdateType selects one visual effect variant.
type UIUpdateType string

const (
	// UIRevealText types text into a surface character by character.
	UIRevealText UIUpdateType = "reveal-text"
	// UISetContent replaces a surface's content wholesale. Structured
	// editors must receive this through a bridge, never the direct path.
	UISetContent UIUpdateType = "set-content"
	// UIFlashLines highlights a set of line numbers briefly.
	UIFlashLines UIUpdateType = "flash-lines"
	// UICreatePath animates a file or directory appearing in a browser.
	UICreatePath UIUpdateType = "create-path"
	// UIRemovePath animates a file or directory disappearing.
	UIRemovePath UIUpdateType = "remove-path"
	// UISetValue assigns a single named attribute on a surface.
	UISetValue UIUpdateType = "set-value"
)

// UIUpdate is an inert descriptor of one visual effect against a named
// surface. It only becomes an effect when played by the ui.Executor.
// Delay and Duration are in milliseconds.
type UIUpdate struct {
	Type     UIUpdateType `json:"type"`
	TargetID string       `json:"targetId"`
	Delay    int          `json:"delay,omitempty"`
	Duration int          `json:"duration,omitempty"`

	Text  string `json:"text,omitempty"`
	Lines []int  `json:"lines,omitempty"`
	Path  string `json:"path,omitempty"`
	Key   string `json:"key,omitempty"`
	Value any    `json:"value,omitempty"`
}
