package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/warehouse-backend/api/middleware"
	"github.com/angelmondragon/warehouse-backend/api/validators"
	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/pagination"
)

const maxNotesLength = 1000

func actorFromRequest(r *http.Request) (inventory.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return inventory.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	return actor, nil
}

func uuidParam(r *http.Request, name, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}

func parseUUID(raw, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}

func parseOptionalUUID(raw *string, label string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := parseUUID(*raw, label)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseOptionalTime(raw *string, label string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return &ts, nil
	}
	ts, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return &ts, nil
}

func sanitizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	clean := validators.SanitizeString(*value, maxNotesLength)
	if clean == "" {
		return nil
	}
	return &clean
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
