package access

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Kilat-Parking/service-parking/pkg/auth"
	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

// Principal is the authenticated caller.
type Principal struct {
	ID   uuid.UUID
	Role string
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == auth.RoleAdmin }

// ResourceKind names what is being acted on.
type ResourceKind string

const (
	ResourceBooking ResourceKind = "booking"
	ResourceVehicle ResourceKind = "vehicle"
	ResourceLot     ResourceKind = "parking_lot"
	ResourceSpot    ResourceKind = "parking_spot"
)

// Resource identifies the target of an action. OwnerID is nil for resources without an owner.
type Resource struct {
	Kind    ResourceKind
	OwnerID *uuid.UUID
}

// Owned builds a resource owned by ownerID.
func Owned(kind ResourceKind, ownerID uuid.UUID) Resource {
	return Resource{Kind: kind, OwnerID: &ownerID}
}

// Unowned builds a resource without an owner, such as a lot or the collection of all bookings.
func Unowned(kind ResourceKind) Resource {
	return Resource{Kind: kind}
}

// Action is an operation on a resource.
type Action string

const (
	ActionCreate         Action = "create"
	ActionRead           Action = "read"
	ActionUpdate         Action = "update"
	ActionDelete         Action = "delete"
	ActionList           Action = "list"
	ActionCancel         Action = "cancel"
	ActionCheckIn        Action = "check_in"
	ActionCheckOut       Action = "check_out"
	ActionOverrideStatus Action = "override_status"
	ActionExport         Action = "export"
)

type rule int

const (
	anyone rule = iota
	ownerOnly
	ownerOrAdmin
	adminOnly
)

var rules = map[ResourceKind]map[Action]rule{
	ResourceBooking: {
		ActionCreate:         anyone,
		ActionRead:           ownerOrAdmin,
		ActionList:           ownerOrAdmin,
		ActionCancel:         ownerOnly,
		ActionCheckIn:        ownerOrAdmin,
		ActionCheckOut:       ownerOrAdmin,
		ActionOverrideStatus: adminOnly,
		ActionExport:         adminOnly,
	},
	ResourceVehicle: {
		ActionCreate: anyone,
		ActionRead:   ownerOrAdmin,
		ActionList:   ownerOrAdmin,
		ActionUpdate: ownerOnly,
		ActionDelete: ownerOnly,
	},
	ResourceLot: {
		ActionRead:   anyone,
		ActionList:   anyone,
		ActionCreate: adminOnly,
		ActionUpdate: adminOnly,
		ActionDelete: adminOnly,
	},
	ResourceSpot: {
		ActionRead:   anyone,
		ActionList:   anyone,
		ActionCreate: adminOnly,
		ActionUpdate: adminOnly,
		ActionDelete: adminOnly,
	},
}

// Authorize decides whether principal may perform action on resource.
// It returns nil when allowed and a forbidden domain error otherwise.
func Authorize(principal Principal, resource Resource, action Action) error {
	if principal.ID == uuid.Nil {
		return domain.NewUnauthorizedError("authentication required")
	}

	r, ok := rules[resource.Kind][action]
	if !ok {
		return deny(resource, action)
	}

	isOwner := resource.OwnerID != nil && *resource.OwnerID == principal.ID
	switch r {
	case anyone:
		return nil
	case ownerOnly:
		if isOwner {
			return nil
		}
	case ownerOrAdmin:
		if isOwner || principal.IsAdmin() {
			return nil
		}
	case adminOnly:
		if principal.IsAdmin() {
			return nil
		}
	}
	return deny(resource, action)
}

func deny(resource Resource, action Action) error {
	return domain.NewForbiddenError(fmt.Sprintf("not allowed to %s this %s", action, resource.Kind))
}
