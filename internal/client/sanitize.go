package client

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/lumenos/lumen/internal/domain"
)

const (
	// maxSerializedData caps how much of a tool result is echoed back to
	// the model, bounding context growth regardless of tool output size.
	maxSerializedData = 12000
	summaryLength     = 500
	truncationMarker  = "... [truncated]"
)

// wireResult is the reduced tool result sent on Continue: outcome and data
// only, never the UI effect descriptors.
type wireResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// sanitizeResult prepares a tool result for the model. Oversized data is
// replaced with a truncation envelope; the local history keeps the full
// result, only the upstream copy is reduced.
func sanitizeResult(res *domain.ToolResult) wireResult {
	out := wireResult{Success: res.Success, Error: res.Error}
	if res.Data == nil {
		return out
	}

	raw, err := json.Marshal(res.Data)
	if err != nil {
		out.Data = fmt.Sprintf("%v", res.Data)
		return out
	}
	if len(raw) <= maxSerializedData {
		out.Data = res.Data
		return out
	}

	// The cut must not split a multi-byte rune, or the summary is invalid
	// UTF-8.
	cut := summaryLength
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}

	out.Data = map[string]any{
		"_truncated":      true,
		"_originalLength": len(raw),
		"summary":         string(raw[:cut]) + truncationMarker,
	}

	return out
}
