package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"scoop_backend/internal/cache"
	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
	"scoop_backend/internal/store"
)

// maxSummaryFallback bounds the individual lookups made when a batch get
// unexpectedly returns nothing.
const maxSummaryFallback = 5

// summaryLookupTimeout bounds one shared individual lookup.
const summaryLookupTimeout = 2 * time.Second

// UserService is the identity resolver: user records, the handle mapping and
// live user summaries.
type UserService struct {
	userRepo   repository.UserRepository
	handleRepo repository.HandleRepository
	summaries  cache.SummaryCache // nil when Redis is not configured
	lookups    singleflight.Group
	logger     *zap.Logger
}

func NewUserService(
	userRepo repository.UserRepository,
	handleRepo repository.HandleRepository,
	summaries cache.SummaryCache,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		handleRepo: handleRepo,
		summaries:  summaries,
		logger:     logger.Named("users"),
	}
}

// GetByID returns the user record.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepo.Get(ctx, id)
}

// GetOrCreate returns the caller's record, creating it on first authenticated call.
func (s *UserService) GetOrCreate(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.Get(ctx, userID, store.Consistent())
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	user = &model.User{ID: userID, CreatedAt: now, UpdatedAt: now}
	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, store.ErrConditionFailed) {
		// a concurrent first call won the race
		return s.userRepo.Get(ctx, userID, store.Consistent())
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", userID))
	return user, nil
}

// UpdateProfile applies the non-nil fields of req.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.AvatarKey != nil {
		user.AvatarKey = strings.TrimSpace(*req.AvatarKey)
	}
	if req.TermsAccepted != nil {
		user.TermsAccepted = *req.TermsAccepted
	}
	if p := req.Notifications; p != nil {
		if p.Mentions != nil {
			user.Notifications.Mentions = p.Mentions
		}
		if p.Comments != nil {
			user.Notifications.Comments = p.Comments
		}
		if p.Reactions != nil {
			user.Notifications.Reactions = p.Reactions
		}
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Put(ctx, user); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return user, nil
}

// ClaimHandle points candidate at userID. The mapping is written with a
// conditional put, so of two concurrent claims for the same handle only one
// succeeds; the other gets model.ErrHandleTaken.
func (s *UserService) ClaimHandle(ctx context.Context, userID, candidate string) (*model.User, error) {
	handle := model.NormalizeHandle(candidate)
	if err := model.ValidateHandle(handle); err != nil {
		return nil, err
	}

	user, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Handle == handle {
		return user, nil
	}

	if err := s.handleRepo.Claim(ctx, handle, userID); err != nil {
		return nil, err
	}

	previous := user.Handle
	user.Handle = handle
	user.UpdatedAt = time.Now().UTC()
	if err := s.userRepo.Put(ctx, user); err != nil {
		// the mapping and the record move together or not at all
		if rbErr := s.handleRepo.Release(ctx, handle, userID); rbErr != nil {
			s.logger.Error("failed to roll back handle claim",
				zap.String("user_id", userID), zap.String("handle", handle), zap.Error(rbErr))
		}
		return nil, err
	}

	model.Failed("handle_index_put", s.handleRepo.IndexPut(ctx, handle, userID)).Log(s.logger, zap.String("user_id", userID))
	if previous != "" {
		model.Failed("handle_release", s.handleRepo.Release(ctx, previous, userID)).Log(s.logger, zap.String("user_id", userID))
		model.Failed("handle_index_delete", s.handleRepo.IndexDelete(ctx, previous)).Log(s.logger, zap.String("user_id", userID))
	}
	s.invalidate(ctx, userID)

	s.logger.Info("handle claimed", zap.String("user_id", userID), zap.String("handle", handle))
	return user, nil
}

// SetInviteCode records the invite code the user signed up with.
func (s *UserService) SetInviteCode(ctx context.Context, userID, code string) error {
	user, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	user.InviteCode = code
	user.UpdatedAt = time.Now().UTC()
	return s.userRepo.Put(ctx, user)
}

// ResolveHandle maps a handle to its owner with a direct key read.
func (s *UserService) ResolveHandle(ctx context.Context, handle string) (string, error) {
	h := model.NormalizeHandle(handle)
	if h == "" {
		return "", model.ErrUserNotFound
	}
	id, found, err := s.handleRepo.Owner(ctx, h)
	if err != nil {
		return "", err
	}
	if !found {
		return "", model.ErrUserNotFound
	}
	return id, nil
}

// ResolveTarget returns the user id named by req, by id or by handle.
func (s *UserService) ResolveTarget(ctx context.Context, req model.TargetRequest) (string, error) {
	if id := strings.TrimSpace(req.UserID); id != "" {
		return id, nil
	}
	if strings.TrimSpace(req.Handle) == "" {
		return "", model.Validationf("userId or handle is required")
	}
	return s.ResolveHandle(ctx, req.Handle)
}

// ResolveSummaries returns live summaries keyed by user id. Unknown ids are
// absent from the map. If the batch read comes back empty for a non-empty
// input, up to maxSummaryFallback ids are looked up one by one.
func (s *UserService) ResolveSummaries(ctx context.Context, ids []string) (map[string]model.UserSummary, error) {
	wanted := dedupe(ids)
	out := make(map[string]model.UserSummary, len(wanted))
	if len(wanted) == 0 {
		return out, nil
	}

	missing := wanted
	if s.summaries != nil {
		cached, err := s.summaries.GetMany(ctx, wanted)
		if err != nil {
			s.logger.Debug("summary cache read failed", zap.Error(err))
		}
		missing = missing[:0:0]
		for _, id := range wanted {
			if sum, ok := cached[id]; ok {
				out[id] = sum
			} else {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			return out, nil
		}
	}

	users, batchErr := s.userRepo.BatchGet(ctx, missing)
	if batchErr != nil {
		s.logger.Warn("summary batch get failed", zap.Int("ids", len(missing)), zap.Error(batchErr))
	}
	if len(users) == 0 {
		users = s.lookupIndividually(ctx, missing)
	}

	fresh := make([]model.UserSummary, 0, len(users))
	for i := range users {
		sum := users[i].Summary()
		out[sum.ID] = sum
		fresh = append(fresh, sum)
	}
	if s.summaries != nil && len(fresh) > 0 {
		if err := s.summaries.SetMany(ctx, fresh); err != nil {
			s.logger.Debug("summary cache write failed", zap.Error(err))
		}
	}

	if len(out) == 0 && batchErr != nil {
		return out, batchErr
	}
	return out, nil
}

// SummaryList resolves ids and returns summaries in the order of ids, skipping unknown ones.
func (s *UserService) SummaryList(ctx context.Context, ids []string) ([]model.UserSummary, error) {
	byID, err := s.ResolveSummaries(ctx, ids)
	list := make([]model.UserSummary, 0, len(byID))
	for _, id := range dedupe(ids) {
		if sum, ok := byID[id]; ok {
			list = append(list, sum)
		}
	}
	return list, err
}

// lookupIndividually shares each in-flight read between callers. The shared
// read runs detached from any one caller's cancellation, bounded by
// summaryLookupTimeout; a caller whose ctx ends stops waiting on its own.
func (s *UserService) lookupIndividually(ctx context.Context, ids []string) []model.User {
	var users []model.User
	for _, id := range ids[:min(len(ids), maxSummaryFallback)] {
		ch := s.lookups.DoChan(id, func() (any, error) {
			lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryLookupTimeout)
			defer cancel()
			return s.userRepo.Get(lookupCtx, id)
		})
		select {
		case <-ctx.Done():
			return users
		case res := <-ch:
			if res.Err != nil {
				continue
			}
			users = append(users, *res.Val.(*model.User))
		}
	}
	return users
}

func (s *UserService) invalidate(ctx context.Context, ids ...string) {
	if s.summaries == nil {
		return
	}
	if err := s.summaries.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.Strings("user_ids", ids), zap.Error(err))
	}
}

// DeleteIdentity removes the handle mapping, its index row and the user record.
// Used by account deletion, one outcome per step.
func (s *UserService) DeleteIdentity(ctx context.Context, userID string) []model.Outcome {
	var outcomes []model.Outcome
	user, err := s.userRepo.Get(ctx, userID, store.Consistent())
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		outcomes = append(outcomes, model.Skip("handle"))
	case err != nil:
		outcomes = append(outcomes, model.Failed("handle", fmt.Errorf("load user: %w", err)))
	case user.Handle == "":
		outcomes = append(outcomes, model.Skip("handle"))
	default:
		outcomes = append(outcomes,
			model.Failed("handle", s.handleRepo.Release(ctx, user.Handle, userID)),
			model.Failed("handle_index", s.handleRepo.IndexDelete(ctx, user.Handle)),
		)
	}
	outcomes = append(outcomes, model.Failed("user_record", s.userRepo.Delete(ctx, userID)))
	s.invalidate(ctx, userID)
	return outcomes
}

// dedupe drops empty and repeated ids, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
