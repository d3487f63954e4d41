package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
	"scoop_backend/internal/store"
)

// codeAttempts bounds retries when a generated code collides with an existing one.
const codeAttempts = 3

type InviteService struct {
	inviteRepo repository.InviteRepository
	users      *UserService
	logger     *zap.Logger
}

func NewInviteService(inviteRepo repository.InviteRepository, users *UserService, logger *zap.Logger) *InviteService {
	return &InviteService{inviteRepo: inviteRepo, users: users, logger: logger.Named("invites")}
}

// newInviteCode is the first 8 hex digits of a random uuid, upper-cased.
func newInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:model.InviteCodeLength])
}

// Create issues a new code unless the owner already has MaxLiveInvites unused ones.
func (s *InviteService) Create(ctx context.Context, ownerID string) (*model.Invite, error) {
	existing, err := s.inviteRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if liveCount(existing) >= model.MaxLiveInvites {
		return nil, model.ErrInviteLimit
	}

	for range codeAttempts {
		invite := &model.Invite{
			Code:      newInviteCode(),
			OwnerID:   ownerID,
			Status:    model.InviteStatusLive,
			CreatedAt: time.Now().UTC(),
		}
		err := s.inviteRepo.Create(ctx, invite)
		if errors.Is(err, store.ErrConditionFailed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logger.Info("invite created", zap.String("owner_id", ownerID), zap.String("code", invite.Code))
		return invite, nil
	}
	return nil, model.NewError(model.ErrConflict, "could not allocate an invite code, try again")
}

func liveCount(invites []model.Invite) int {
	n := 0
	for i := range invites {
		if !invites[i].IsUsed() {
			n++
		}
	}
	return n
}

// List returns the owner's codes newest first.
func (s *InviteService) List(ctx context.Context, ownerID string) (*model.InviteListResponse, error) {
	invites, err := s.inviteRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if invites == nil {
		invites = []model.Invite{}
	}
	sort.SliceStable(invites, func(i, j int) bool { return invites[i].CreatedAt.After(invites[j].CreatedAt) })
	return &model.InviteListResponse{Invites: invites, Live: liveCount(invites)}, nil
}

// Redeem uses up a code and stores it on the redeemer's profile.
func (s *InviteService) Redeem(ctx context.Context, userID, code string) (*model.Invite, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != model.InviteCodeLength {
		return nil, model.ErrInviteNotFound
	}
	invite, err := s.inviteRepo.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if invite.OwnerID == userID {
		return nil, model.ErrOwnInvite
	}
	if invite.IsUsed() {
		return nil, model.ErrInviteUsed
	}
	if err := s.inviteRepo.Redeem(ctx, invite, userID, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.users.SetInviteCode(ctx, userID, code); err != nil {
		// the code is spent either way; the profile field is informational
		s.logger.Warn("failed to record invite on profile", zap.String("user_id", userID), zap.Error(err))
	}
	s.logger.Info("invite redeemed", zap.String("code", code), zap.String("user_id", userID))
	return invite, nil
}

// DeleteAllByOwner removes every code userID created. Used by account deletion.
func (s *InviteService) DeleteAllByOwner(ctx context.Context, ownerID string) model.Outcome {
	const step = "invites"
	invites, err := s.inviteRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return model.Failed(step, err)
	}
	var errs []error
	for i := range invites {
		if err := s.inviteRepo.Delete(ctx, &invites[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return model.Failed(step, errors.Join(errs...))
}
