package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
)

func TestParamsSize(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		p := Params{Limit: in}
		if got := p.Size(); got != want {
			t.Fatalf("Size(%d) = %d, want %d", in, got, want)
		}
		if p.FetchSize() != want+1 {
			t.Fatalf("FetchSize(%d) = %d", in, p.FetchSize())
		}
	}
}

func TestPageEmitsCursorForFollowingPage(t *testing.T) {
	base := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)
	type row struct {
		at time.Time
		id uuid.UUID
	}
	rows := []row{{base, uuid.New()}, {base.Add(-time.Minute), uuid.New()}, {base.Add(-2 * time.Minute), uuid.New()}}
	key := func(r row) Cursor { return Cursor{At: r.at, ID: r.id} }

	page, next := Page(Params{Limit: 2}, rows, key)
	if len(page) != 2 || next == "" {
		t.Fatalf("expected 2 rows and a cursor, got %d %q", len(page), next)
	}
	after, err := Params{Cursor: next}.After()
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if !after.At.Equal(rows[1].at) || after.ID != rows[1].id {
		t.Fatalf("cursor points at %+v, want second row", after)
	}

	last, next := Page(Params{Limit: 5}, rows, key)
	if len(last) != 3 || next != "" {
		t.Fatalf("expected final page without cursor, got %d %q", len(last), next)
	}
}

func TestAfterRejectsBadCursors(t *testing.T) {
	if c, err := (Params{}).After(); c != nil || err != nil {
		t.Fatalf("empty cursor should be nil, got %v %v", c, err)
	}
	for _, raw := range []string{"not base64!", "Zm9v", Cursor{}.String()} {
		_, err := Params{Cursor: raw}.After()
		var typed *pkgerrors.Error
		if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("cursor %q: expected validation error, got %v", raw, err)
		}
	}
}
