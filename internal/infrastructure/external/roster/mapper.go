package roster

import (
	"strings"

	"github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to Domain Entity transformations
// ══════════════════════════════════════════════════════════════════════════════

// Mapper transforms roster store DTOs into domain roster records.
// This is the anti-corruption layer: loose upstream typing (string years,
// lowercase divisions, comma-joined subjects) is normalized here, once, so
// nothing downstream ever re-coerces.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// ErrNilDTO is returned when trying to map a nil DTO.
var ErrNilDTO = &MappingError{Message: "cannot map nil DTO"}

// MappingError represents an error during DTO to domain mapping.
type MappingError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	if e.Field != "" {
		return "mapping error for field " + e.Field + ": " + e.Message
	}
	return "mapping error: " + e.Message
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error {
	return e.Cause
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// EntryFromDTO converts a StudentRecordDTO to a domain roster entry.
func (m *Mapper) EntryFromDTO(dto *StudentRecordDTO) (roster.Entry, error) {
	if dto == nil {
		return roster.Entry{}, ErrNilDTO
	}

	identity := strings.TrimSpace(dto.RollNo)
	if identity == "" {
		return roster.Entry{}, &MappingError{Field: "rollNo", Message: "empty identity"}
	}

	return roster.Entry{
		Identity: identity,
		Name:     strings.TrimSpace(dto.Name),
		Subjects: normalizeSubjects(dto.Subjects),
	}, nil
}

// EntriesFromDTO converts a RosterDTO to domain entries.
// Records without an identity are skipped rather than failing the roster.
func (m *Mapper) EntriesFromDTO(dto *RosterDTO) []roster.Entry {
	if dto == nil {
		return nil
	}

	entries := make([]roster.Entry, 0, len(dto.Students))
	for i := range dto.Students {
		entry, err := m.EntryFromDTO(&dto.Students[i])
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// IdentityRecordFromDTO converts a StudentRecordDTO to a per-identity record,
// including the normalized cohort.
func (m *Mapper) IdentityRecordFromDTO(dto *StudentRecordDTO) (roster.IdentityRecord, error) {
	if dto == nil {
		return roster.IdentityRecord{}, ErrNilDTO
	}

	identity := strings.TrimSpace(dto.RollNo)
	if identity == "" {
		return roster.IdentityRecord{}, &MappingError{Field: "rollNo", Message: "empty identity"}
	}

	year := shared.Year(dto.Year.Int())
	if !year.IsValid() {
		return roster.IdentityRecord{}, &MappingError{Field: "year", Message: "year out of range"}
	}

	division := shared.Division(strings.ToUpper(strings.TrimSpace(dto.Division)))
	if !division.IsValid() {
		return roster.IdentityRecord{}, &MappingError{Field: "div", Message: "invalid division"}
	}

	return roster.IdentityRecord{
		Identity: identity,
		Name:     strings.TrimSpace(dto.Name),
		Year:     year,
		Division: division,
		Subjects: normalizeSubjects(dto.Subjects),
	}, nil
}

// normalizeSubjects trims and deduplicates subject names, preserving order.
func normalizeSubjects(subjects []string) []string {
	seen := make(map[string]bool, len(subjects))
	out := make([]string, 0, len(subjects))
	for _, s := range subjects {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
