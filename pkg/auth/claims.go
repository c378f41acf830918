package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/warehouse-backend/pkg/enums"
)

// Claims is the body of an access token. The registered subject carries the
// user id; a missing warehouse_id means the holder is not bound to one
// warehouse.
type Claims struct {
	Role        enums.MemberRole `json:"role"`
	WarehouseID *uuid.UUID       `json:"warehouse_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity is what a verified token says about its holder.
type Identity struct {
	UserID      uuid.UUID
	Role        enums.MemberRole
	WarehouseID *uuid.UUID
	TokenID     string
	ExpiresAt   time.Time
}

func (c *Claims) identity() (Identity, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("subject is not a user id: %w", err)
	}
	role, err := enums.ParseMemberRole(string(c.Role))
	if err != nil {
		return Identity{}, err
	}
	if c.WarehouseID != nil && *c.WarehouseID == uuid.Nil {
		return Identity{}, errors.New("warehouse_id must not be the nil uuid")
	}
	id := Identity{
		UserID:      userID,
		Role:        role,
		WarehouseID: c.WarehouseID,
		TokenID:     c.ID,
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id, nil
}
