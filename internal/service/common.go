// Package service implements the business rules of the application on top
// of the repository layer.
package service

import (
	"errors"
	"time"

	"wanderfeed/internal/database"
	"wanderfeed/internal/models"

	"github.com/jinzhu/copier"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is a normalized zero-based page request.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// NewPage clamps page to >= 0 and limit to 1..MaxPageLimit, defaulting
// limit to DefaultPageLimit.
func NewPage(page, limit int) Page {
	if page < 0 {
		page = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Page: page, Limit: limit}
}

// Offset is page*limit.
func (p Page) Offset() int {
	return p.Page * p.Limit
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// wrapErr passes AppErrors through, maps unique violations to CONFLICT and
// everything else to INTERNAL_ERROR.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if database.IsUniqueViolation(err) {
		return &models.AppError{Code: models.CodeConflict, Message: "Resource already exists", Err: err}
	}
	return models.NewInternalError(err)
}

func authorProfile(u *models.User) *models.AuthorProfile {
	if u == nil {
		return nil
	}
	var p models.AuthorProfile
	// Fields match by name; copier only fails on mismatched kinds.
	_ = copier.Copy(&p, u)
	return &p
}

func authorProfiles(users []models.User) []models.AuthorProfile {
	out := make([]models.AuthorProfile, 0, len(users))
	for i := range users {
		out = append(out, *authorProfile(&users[i]))
	}
	return out
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
