package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	organizationdomain "github.com/rzbeall84/ask-rita/internal/organization/domain"
	store "github.com/rzbeall84/ask-rita/pkg/repository"
)

type Repository interface {
	Insert(ctx context.Context, org *organizationdomain.Organization) error
	InsertMember(ctx context.Context, member *organizationdomain.OrganizationMember) error
	InsertInvite(ctx context.Context, invite *organizationdomain.OrganizationInvite) error
	FindByID(ctx context.Context, orgID snowflake.ID) (*organizationdomain.Organization, error)
	CountMembers(ctx context.Context, orgID snowflake.ID) (int64, error)
	CountPendingInvites(ctx context.Context, orgID snowflake.ID) (int64, error)
	FindMember(ctx context.Context, orgID, userID snowflake.ID) (*organizationdomain.OrganizationMember, error)
}

type Param struct {
	fx.In

	DB *gorm.DB
}

type repository struct {
	orgs    store.Repository[organizationdomain.Organization]
	members store.Repository[organizationdomain.OrganizationMember]
	invites store.Repository[organizationdomain.OrganizationInvite]
}

func NewRepository(p Param) Repository {
	return &repository{
		orgs:    store.ProvideStore[organizationdomain.Organization](p.DB),
		members: store.ProvideStore[organizationdomain.OrganizationMember](p.DB),
		invites: store.ProvideStore[organizationdomain.OrganizationInvite](p.DB),
	}
}

func (r *repository) Insert(ctx context.Context, org *organizationdomain.Organization) error {
	return r.orgs.Create(ctx, org)
}

func (r *repository) InsertMember(ctx context.Context, member *organizationdomain.OrganizationMember) error {
	return r.members.Create(ctx, member)
}

func (r *repository) InsertInvite(ctx context.Context, invite *organizationdomain.OrganizationInvite) error {
	return r.invites.Create(ctx, invite)
}

func (r *repository) FindByID(ctx context.Context, orgID snowflake.ID) (*organizationdomain.Organization, error) {
	return r.orgs.FindOne(ctx, &organizationdomain.Organization{ID: orgID})
}

func (r *repository) CountMembers(ctx context.Context, orgID snowflake.ID) (int64, error) {
	return r.members.Count(ctx, &organizationdomain.OrganizationMember{OrgID: orgID})
}

func (r *repository) CountPendingInvites(ctx context.Context, orgID snowflake.ID) (int64, error) {
	return r.invites.Count(ctx, &organizationdomain.OrganizationInvite{
		OrgID:  orgID,
		Status: organizationdomain.InviteStatusPending,
	})
}

func (r *repository) FindMember(ctx context.Context, orgID, userID snowflake.ID) (*organizationdomain.OrganizationMember, error) {
	return r.members.FindOne(ctx, &organizationdomain.OrganizationMember{OrgID: orgID, UserID: userID})
}
