package access_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Kilat-Parking/service-parking/internal/domain/access"
	"github.com/Kilat-Parking/service-parking/pkg/auth"
	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

func TestAuthorize(t *testing.T) {
	owner := access.Principal{ID: uuid.New(), Role: auth.RoleUser}
	stranger := access.Principal{ID: uuid.New(), Role: auth.RoleUser}
	admin := access.Principal{ID: uuid.New(), Role: auth.RoleAdmin}

	ownedBooking := access.Owned(access.ResourceBooking, owner.ID)
	ownedVehicle := access.Owned(access.ResourceVehicle, owner.ID)
	lots := access.Unowned(access.ResourceLot)

	tests := []struct {
		name      string
		principal access.Principal
		resource  access.Resource
		action    access.Action
		wantKind  domain.ErrorKind
	}{
		{name: "owner reads booking", principal: owner, resource: ownedBooking, action: access.ActionRead},
		{name: "admin reads booking", principal: admin, resource: ownedBooking, action: access.ActionRead},
		{name: "stranger reads booking", principal: stranger, resource: ownedBooking, action: access.ActionRead, wantKind: domain.KindForbidden},
		{name: "owner cancels booking", principal: owner, resource: ownedBooking, action: access.ActionCancel},
		{name: "admin cannot cancel for owner", principal: admin, resource: ownedBooking, action: access.ActionCancel, wantKind: domain.KindForbidden},
		{name: "admin checks in", principal: admin, resource: ownedBooking, action: access.ActionCheckIn},
		{name: "owner cannot override", principal: owner, resource: ownedBooking, action: access.ActionOverrideStatus, wantKind: domain.KindForbidden},
		{name: "admin overrides", principal: admin, resource: ownedBooking, action: access.ActionOverrideStatus},
		{name: "admin exports", principal: admin, resource: access.Unowned(access.ResourceBooking), action: access.ActionExport},
		{name: "user cannot export", principal: owner, resource: access.Unowned(access.ResourceBooking), action: access.ActionExport, wantKind: domain.KindForbidden},
		{name: "owner deletes vehicle", principal: owner, resource: ownedVehicle, action: access.ActionDelete},
		{name: "admin cannot update vehicle", principal: admin, resource: ownedVehicle, action: access.ActionUpdate, wantKind: domain.KindForbidden},
		{name: "admin reads vehicle", principal: admin, resource: ownedVehicle, action: access.ActionRead},
		{name: "user reads lots", principal: stranger, resource: lots, action: access.ActionList},
		{name: "user cannot create lot", principal: stranger, resource: lots, action: access.ActionCreate, wantKind: domain.KindForbidden},
		{name: "admin creates spot", principal: admin, resource: access.Unowned(access.ResourceSpot), action: access.ActionCreate},
		{name: "unknown action", principal: admin, resource: lots, action: access.ActionCancel, wantKind: domain.KindForbidden},
		{name: "anonymous", principal: access.Principal{}, resource: lots, action: access.ActionRead, wantKind: domain.KindUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := access.Authorize(tt.principal, tt.resource, tt.action)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, domain.IsKind(err, tt.wantKind), "got %v", err)
		})
	}
}
