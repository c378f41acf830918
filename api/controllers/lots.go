package controllers

import (
	"net/http"

	"github.com/angelmondragon/warehouse-backend/api/responses"
	"github.com/angelmondragon/warehouse-backend/internal/lots"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

// GetLot returns a lot with its live quantity and placement.
func GetLot(svc lots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "id", "lot id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lot, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, lot)
	}
}
