package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	organizationdomain "github.com/rzbeall84/ask-rita/internal/organization/domain"
	"github.com/rzbeall84/ask-rita/internal/organization/repository"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
	"github.com/rzbeall84/ask-rita/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   repository.Repository
	SubSvc subscriptiondomain.Service
}

type Service struct {
	log *zap.Logger

	genID  *snowflake.Node
	repo   repository.Repository
	subSvc subscriptiondomain.Service
}

func NewService(p ServiceParam) organizationdomain.Service {
	return &Service{
		log:    p.Log.Named("organization.service"),
		genID:  p.GenID,
		repo:   p.Repo,
		subSvc: p.SubSvc,
	}
}

// Create provisions an organization with its owner seat and the default
// inactive subscription row organizations start out with.
func (s *Service) Create(ctx context.Context, req organizationdomain.CreateOrganizationRequest) (*organizationdomain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, organizationdomain.ErrInvalidName
	}
	ownerID, err := snowflake.ParseString(strings.TrimSpace(req.OwnerUserID))
	if err != nil || ownerID == 0 {
		return nil, organizationdomain.ErrInvalidOrganization
	}

	now := time.Now().UTC()
	org := &organizationdomain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, org); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, organizationdomain.ErrOrganizationExists
		}
		return nil, err
	}

	member := &organizationdomain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     org.ID,
		UserID:    ownerID,
		Role:      subscriptiondomain.RoleOwner,
		CreatedAt: now,
	}
	if err := s.repo.InsertMember(ctx, member); err != nil {
		return nil, err
	}

	if _, err := s.subSvc.EnsureDefault(ctx, org.ID); err != nil {
		s.log.Warn("default subscription not created at signup",
			zap.String("org_id", org.ID.String()), zap.Error(err))
	}

	return org, nil
}

func (s *Service) GetByID(ctx context.Context, orgID snowflake.ID) (*organizationdomain.Organization, error) {
	if orgID == 0 {
		return nil, organizationdomain.ErrInvalidOrganization
	}
	org, err := s.repo.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, organizationdomain.ErrOrganizationNotFound
	}
	return org, nil
}

func (s *Service) SeatUsage(ctx context.Context, orgID snowflake.ID) (int, error) {
	if orgID == 0 {
		return 0, organizationdomain.ErrInvalidOrganization
	}
	members, err := s.repo.CountMembers(ctx, orgID)
	if err != nil {
		return 0, err
	}
	pending, err := s.repo.CountPendingInvites(ctx, orgID)
	if err != nil {
		return 0, err
	}
	return int(members + pending), nil
}

func (s *Service) MemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error) {
	member, err := s.repo.FindMember(ctx, orgID, userID)
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", organizationdomain.ErrMemberNotFound
	}
	return member.Role, nil
}

func (s *Service) CreateInvite(ctx context.Context, req organizationdomain.CreateInviteRequest) (*organizationdomain.OrganizationInvite, error) {
	if req.OrgID == 0 {
		return nil, organizationdomain.ErrInvalidOrganization
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, organizationdomain.ErrInvalidEmail
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = "member"
	}

	invite := &organizationdomain.OrganizationInvite{
		ID:        s.genID.Generate(),
		OrgID:     req.OrgID,
		Email:     email,
		Role:      role,
		Status:    organizationdomain.InviteStatusPending,
		InvitedBy: req.InvitedBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertInvite(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}
