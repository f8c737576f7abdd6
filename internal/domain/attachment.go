package domain

// AttachedFile is user-supplied file context sent alongside an intent. The
// server caps the count and per-file size before handing the content to the
// model.
type AttachedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}
