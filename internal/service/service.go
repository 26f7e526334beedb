// Package service implements the application core: the paste content store
// and the project versioning and collaboration services layered over it.
package service

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/snipforge/snipforge/internal/apperr"
	"github.com/snipforge/snipforge/internal/database"
)

// storeErr translates database sentinels into the shared taxonomy. Composite
// writes that fail for any other reason surface as Transaction errors with
// the cause attached; the store has already rolled back by the time the
// error reaches us.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFoundf("%s not found", what)
	case errors.Is(err, database.ErrDuplicate):
		return apperr.Conflictf("%s already exists", what)
	default:
		return apperr.Wrap(apperr.Transaction, err, "%s write failed", what)
	}
}

func normalizePage(page, perPage, defaultPerPage, maxPerPage int) (limit, offset int) {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	return perPage, (page - 1) * perPage
}

func clipText(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return strings.TrimSpace(s[:max-3]) + "..."
}
