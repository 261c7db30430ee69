// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the response envelope written by commands in --json mode.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a response for data and err. A non-nil err marks
// the response unsuccessful; data is still included.
func NewJSONResponse(command string, data any, err error) *JSONResponse {
	r := &JSONResponse{
		Success:   err == nil,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
	if err != nil {
		msg := err.Error()
		r.Error = &msg
	}
	return r
}

// Write encodes the response to w as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// writeJSON writes the envelope and passes err through so commands still exit
// non-zero.
func writeJSON(w io.Writer, command string, data any, err error) error {
	if werr := NewJSONResponse(command, data, err).Write(w); werr != nil {
		return werr
	}
	return err
}
