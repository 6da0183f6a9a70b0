// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// EncadrementID identifies a tutoring subscription (student-teacher pairing).
// It is the partition key for every other entity in the subsystem.
type EncadrementID string

// IsValid checks if the encadrement ID is a valid UUID.
func (e EncadrementID) IsValid() bool {
	return uuidRegex.MatchString(string(e))
}

// String returns the string representation.
func (e EncadrementID) String() string {
	return string(e)
}

// IsEmpty checks if the ID is empty.
func (e EncadrementID) IsEmpty() bool {
	return e == ""
}

// NewEncadrementID creates a new EncadrementID with validation.
func NewEncadrementID(id string) (EncadrementID, error) {
	eid := EncadrementID(strings.ToLower(strings.TrimSpace(id)))
	if !eid.IsValid() {
		return "", NewDomainError("shared", "NewEncadrementID", ErrInvalidID, "invalid encadrement ID format")
	}
	return eid, nil
}

// UserID identifies a platform account (student or teacher).
type UserID string

// IsValid checks if the user ID is non-empty.
// Account identity lives in the surrounding application; this subsystem only
// requires opaque, stable identifiers.
func (u UserID) IsValid() bool {
	return strings.TrimSpace(string(u)) != ""
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "user ID cannot be empty")
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Money Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Cents represents a monetary amount in euro cents.
// Integer arithmetic avoids the float rounding traps of monthly billing.
type Cents int64

// IsValid checks that the amount is non-negative.
func (c Cents) IsValid() bool {
	return c >= 0
}

// Int64 returns the underlying int64 value.
func (c Cents) Int64() int64 {
	return int64(c)
}

// Euros returns the amount as a formatted euro string, e.g. "89,90 €".
func (c Cents) Euros() string {
	return fmt.Sprintf("%d,%02d €", c/100, c%100)
}

// NewCents creates a Cents value with validation.
func NewCents(amount int64) (Cents, error) {
	c := Cents(amount)
	if !c.IsValid() {
		return 0, NewDomainError("shared", "NewCents", ErrValueOutOfRange, "amount cannot be negative")
	}
	return c, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Chapter Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Chapter identifies a syllabus chapter tracked by the progress component.
// Format: subject-topic (e.g. "maths-suites", "physique-ondes").
type Chapter string

var chapterRegex = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// IsValid checks if the chapter key format is valid.
func (c Chapter) IsValid() bool {
	s := string(c)
	return len(s) >= 3 && len(s) <= 80 && chapterRegex.MatchString(s)
}

// String returns the string representation.
func (c Chapter) String() string {
	return string(c)
}

// Subject extracts the subject prefix from the chapter key.
func (c Chapter) Subject() string {
	parts := strings.Split(string(c), "-")
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// NewChapter creates a new Chapter with validation.
func NewChapter(key string) (Chapter, error) {
	ch := Chapter(strings.ToLower(strings.TrimSpace(key)))
	if !ch.IsValid() {
		return "", NewDomainError("shared", "NewChapter", ErrInvalidInput, "invalid chapter key format")
	}
	return ch, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percent Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percent represents completion progress in [0, 100].
type Percent float64

const (
	MinPercent Percent = 0
	MaxPercent Percent = 100
)

// IsValid checks if the value is within [0, 100].
func (p Percent) IsValid() bool {
	return p >= MinPercent && p <= MaxPercent
}

// Float64 returns the underlying float value.
func (p Percent) Float64() float64 {
	return float64(p)
}

// IsComplete reports whether the chapter is fully done.
func (p Percent) IsComplete() bool {
	return p >= MaxPercent
}

// NewPercent creates a Percent with validation.
func NewPercent(value float64) (Percent, error) {
	p := Percent(value)
	if !p.IsValid() {
		return 0, ErrProgressOutOfRange
	}
	return p, nil
}
