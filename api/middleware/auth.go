package middleware

import (
	"net/http"

	"github.com/angelmondragon/warehouse-backend/api/responses"
	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/pkg/auth"
	"github.com/angelmondragon/warehouse-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

// Auth verifies the bearer token and seeds the request context with the
// actor it identifies.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, setupErr := auth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if setupErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, setupErr, "token verification unavailable"))
				return
			}
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			id, err := verifier.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			actor := inventory.Actor{UserID: id.UserID, Role: id.Role, WarehouseID: id.WarehouseID}
			if err := actor.Validate(); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithUserID(ctx, actor.UserID.String())
				ctx = logg.WithActorRole(ctx, actor.Role.String())
				if actor.WarehouseID != nil {
					ctx = logg.WithWarehouseID(ctx, actor.WarehouseID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
