package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateOrganizationRequest struct {
	Name        string `json:"name"`
	OwnerUserID string `json:"owner_user_id"`
}

type CreateInviteRequest struct {
	OrgID     snowflake.ID
	Email     string
	Role      string
	InvitedBy snowflake.ID
}

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	GetByID(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	// SeatUsage counts occupied seats: members plus pending invites.
	SeatUsage(ctx context.Context, orgID snowflake.ID) (int, error)
	// MemberRole returns the role a user holds in the organization.
	MemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error)
	CreateInvite(ctx context.Context, req CreateInviteRequest) (*OrganizationInvite, error)
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrOrganizationExists   = errors.New("organization_exists")
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrMemberNotFound       = errors.New("member_not_found")
)
