// Package pagination implements keyset paging over (timestamp, id) pairs.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is a page request as parsed from the query string.
type Params struct {
	Limit  int
	Cursor string
}

// Size is the clamped page size.
func (p Params) Size() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	}
	return p.Limit
}

// FetchSize is Size plus one row used to detect a following page.
func (p Params) FetchSize() int { return p.Size() + 1 }

// After decodes the opaque cursor. An empty cursor yields nil.
func (p Params) After() (*Cursor, error) {
	raw := strings.TrimSpace(p.Cursor)
	if raw == "" {
		return nil, nil
	}
	c, err := decode(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return c, nil
}

// Cursor is the sort key of the last row of a page.
type Cursor struct {
	At time.Time `json:"t"`
	ID uuid.UUID `json:"id"`
}

func (c Cursor) String() string {
	raw, _ := json.Marshal(Cursor{At: c.At.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decode(raw string) (*Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.At.IsZero() || c.ID == uuid.Nil {
		return nil, errors.New("cursor is incomplete")
	}
	return &c, nil
}

// Page cuts rows fetched with FetchSize down to Size and returns the cursor
// for the next page, or "" on the last page.
func Page[T any](p Params, rows []T, key func(T) Cursor) ([]T, string) {
	size := p.Size()
	if len(rows) <= size {
		return rows, ""
	}
	rows = rows[:size]
	return rows, key(rows[size-1]).String()
}
