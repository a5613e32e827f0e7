// Package roster implements the roster store API client.
// The roster store is the university's authoritative enrollment service;
// this package handles all communication with it and normalizes its loosely
// typed payloads at the boundary.
package roster

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// API RESPONSE WRAPPERS
// ══════════════════════════════════════════════════════════════════════════════

// APIResponse represents a generic roster store response wrapper.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

// APIErrorDTO represents an error response from the roster store.
type APIErrorDTO struct {
	// Code is the error code
	Code string `json:"code"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// RequestID is the ID of the failed request (for debugging)
	RequestID string `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// ══════════════════════════════════════════════════════════════════════════════
// LOOSE FIELD TYPES
// The roster store is backed by a document database and is not strict about
// scalar types: year arrives as 3 or "3", subjects as an array or a single
// comma-separated string. These types absorb that once, at decode time.
// ══════════════════════════════════════════════════════════════════════════════

// FlexInt decodes a JSON number or a numeric string into an int.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexInt(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

// Int returns the plain int value.
func (f FlexInt) Int() int {
	return int(f)
}

// FlexStrings decodes a JSON string array or a single comma-separated string
// into a string slice.
type FlexStrings []string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*f = nil
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*f = out
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT RECORD DTOs
// ══════════════════════════════════════════════════════════════════════════════

// StudentRecordDTO represents an enrolled student as returned by the roster
// store. This is the external representation that gets mapped to domain
// roster entries.
type StudentRecordDTO struct {
	// RollNo is the university roll number, the identity used everywhere.
	RollNo string `json:"rollNo"`

	// Name is the student's display name.
	Name string `json:"name"`

	// Email is the student's university email (not consumed here).
	Email string `json:"email,omitempty"`

	// Year is the academic year; arrives as a number or a string.
	Year FlexInt `json:"year"`

	// Division is the cohort division letter; casing is not guaranteed.
	Division string `json:"div"`

	// Subjects lists enrolled subjects; array or comma-separated string.
	Subjects FlexStrings `json:"subjects"`
}

// RosterDTO represents a full cohort roster response.
type RosterDTO struct {
	// Students are the enrolled student records.
	Students []StudentRecordDTO `json:"students"`

	// Total is the total count of enrolled students.
	Total int `json:"total,omitempty"`
}
