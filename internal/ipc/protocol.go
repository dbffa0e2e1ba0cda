// Package ipc carries newline-delimited JSON commands over the workspace unix socket.
package ipc

import "encoding/json"

// CommandStatus is the read-only command used for liveness probes.
const CommandStatus = "status"

// Request is one command sent to the running workspace.
type Request struct {
	Command     string `json:"command"`
	Text        string `json:"text,omitempty"`
	Lang        string `json:"lang,omitempty"`
	Style       string `json:"style,omitempty"`
	Background  string `json:"background,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty"`
	// Source selects the source side for speak/copy instead of the translation.
	Source bool `json:"source,omitempty"`
	// Image selects the generated image for copy.
	Image bool `json:"image,omitempty"`
	// Wait blocks until provider-backed commands finish.
	Wait bool `json:"wait,omitempty"`
}

// Response reports command outcome and the workspace state after it ran.
type Response struct {
	OK      bool            `json:"ok"`
	State   json.RawMessage `json:"state,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}
