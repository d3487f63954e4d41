package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
)

// RelationshipService manages follow edges, block edges and the follow-request
// lifecycle. A pending request is a follow_request notification in the
// target's ledger, not a stored entity of its own.
type RelationshipService struct {
	followRepo    repository.FollowRepository
	blockRepo     repository.BlockRepository
	users         *UserService
	notifications *NotificationService
	logger        *zap.Logger
}

func NewRelationshipService(
	followRepo repository.FollowRepository,
	blockRepo repository.BlockRepository,
	users *UserService,
	notifications *NotificationService,
	logger *zap.Logger,
) *RelationshipService {
	return &RelationshipService{
		followRepo:    followRepo,
		blockRepo:     blockRepo,
		users:         users,
		notifications: notifications,
		logger:        logger.Named("relationships"),
	}
}

func requestMatch(requesterID, targetID string) model.NotificationMatch {
	return model.NotificationMatch{TargetID: targetID, Type: model.NotificationTypeFollowRequest, SourceID: requesterID}
}

// Follow creates the edge followerID -> followeeID and notifies the followee.
func (s *RelationshipService) Follow(ctx context.Context, followerID, followeeID string) (model.AckResponse, error) {
	if followerID == followeeID {
		return model.AckResponse{}, model.ErrCannotFollowSelf
	}
	blocked, err := s.HasBlockBetween(ctx, followerID, followeeID)
	if err != nil {
		return model.AckResponse{}, err
	}
	if blocked {
		return model.AckResponse{}, model.ErrBlocked
	}

	already, err := s.followRepo.Exists(ctx, followerID, followeeID)
	if err != nil {
		return model.AckResponse{}, err
	}
	if already {
		return model.AckResponse{OK: true, State: model.StateFollowing}, nil
	}

	if err := s.followRepo.Create(ctx, followerID, followeeID); err != nil {
		return model.AckResponse{}, err
	}

	fields := []zap.Field{zap.String("follower_id", followerID), zap.String("followee_id", followeeID)}
	s.notifications.DeleteMatchingBestEffort(ctx, requestMatch(followerID, followeeID)).Log(s.logger, fields...)
	s.notifyOnce(ctx, model.NewNotification{
		TargetID: followeeID,
		Type:     model.NotificationTypeFollow,
		SourceID: followerID,
		Message:  "started following you",
	}).Log(s.logger, fields...)

	s.logger.Info("followed", fields...)
	return model.AckResponse{OK: true, State: model.StateFollowing}, nil
}

// notifyOnce creates the notification unless an identical one is already in the ledger.
func (s *RelationshipService) notifyOnce(ctx context.Context, in model.NewNotification) model.Outcome {
	exists, err := s.notifications.HasMatching(ctx, model.NotificationMatch{
		TargetID: in.TargetID, Type: in.Type, SourceID: in.SourceID, ContentID: in.ContentID,
	})
	if err != nil {
		return model.Failed("notify_"+in.Type, err)
	}
	if exists {
		return model.Skip("notify_" + in.Type)
	}
	return s.notifications.CreateBestEffort(ctx, in)
}

// Unfollow removes the edge and the follow notification it produced.
func (s *RelationshipService) Unfollow(ctx context.Context, followerID, followeeID string) (model.AckResponse, error) {
	if followerID == followeeID {
		return model.AckResponse{}, model.ErrCannotFollowSelf
	}
	if err := s.followRepo.Delete(ctx, followerID, followeeID); err != nil {
		return model.AckResponse{}, err
	}
	s.notifications.DeleteMatchingBestEffort(ctx, model.NotificationMatch{
		TargetID: followeeID, Type: model.NotificationTypeFollow, SourceID: followerID,
	}).Log(s.logger, zap.String("follower_id", followerID), zap.String("followee_id", followeeID))
	return model.AckResponse{OK: true, State: model.StateNotFollowing}, nil
}

// RequestFollow leaves a follow_request in the target's ledger. Repeating it is a no-op.
func (s *RelationshipService) RequestFollow(ctx context.Context, requesterID, targetID string) (model.AckResponse, error) {
	if requesterID == targetID {
		return model.AckResponse{}, model.ErrCannotRequestSelf
	}
	blocked, err := s.HasBlockBetween(ctx, requesterID, targetID)
	if err != nil {
		return model.AckResponse{}, err
	}
	if blocked {
		return model.AckResponse{}, model.ErrBlocked
	}

	following, err := s.followRepo.Exists(ctx, requesterID, targetID)
	if err != nil {
		return model.AckResponse{}, err
	}
	if following {
		return model.AckResponse{OK: true, State: model.StateFollowing}, nil
	}

	pending, err := s.HasPendingRequest(ctx, requesterID, targetID)
	if err != nil {
		return model.AckResponse{}, err
	}
	if !pending {
		_, err := s.notifications.Create(ctx, model.NewNotification{
			TargetID: targetID,
			Type:     model.NotificationTypeFollowRequest,
			SourceID: requesterID,
			Message:  "requested to follow you",
		})
		if err != nil {
			return model.AckResponse{}, err
		}
	}
	return model.AckResponse{OK: true, State: model.StateRequested}, nil
}

// CancelRequest withdraws requesterID's pending request to targetID.
func (s *RelationshipService) CancelRequest(ctx context.Context, requesterID, targetID string) (model.AckResponse, error) {
	if requesterID == targetID {
		return model.AckResponse{}, model.ErrCannotRequestSelf
	}
	if _, err := s.notifications.DeleteMatching(ctx, requestMatch(requesterID, targetID)); err != nil {
		return model.AckResponse{}, err
	}
	return model.AckResponse{OK: true, State: model.StateRequestRemoved}, nil
}

// AcceptRequest turns a pending request into a follow edge requester -> target.
// The edge is the authoritative step; removing the request and notifying the
// requester are best-effort.
func (s *RelationshipService) AcceptRequest(ctx context.Context, targetID, requesterID string) (model.AckResponse, error) {
	if requesterID == targetID {
		return model.AckResponse{}, model.ErrCannotRequestSelf
	}

	following, err := s.followRepo.Exists(ctx, requesterID, targetID)
	if err != nil {
		return model.AckResponse{}, err
	}
	if !following {
		pending, err := s.HasPendingRequest(ctx, requesterID, targetID)
		if err != nil {
			return model.AckResponse{}, err
		}
		if !pending {
			return model.AckResponse{}, model.ErrNoPendingRequest
		}
		if err := s.followRepo.Create(ctx, requesterID, targetID); err != nil {
			return model.AckResponse{}, err
		}
	}

	fields := []zap.Field{zap.String("target_id", targetID), zap.String("requester_id", requesterID)}
	s.notifications.DeleteMatchingBestEffort(ctx, requestMatch(requesterID, targetID)).Log(s.logger, fields...)
	if !following {
		s.notifyOnce(ctx, model.NewNotification{
			TargetID: requesterID,
			Type:     model.NotificationTypeFollowAccept,
			SourceID: targetID,
			Message:  "accepted your follow request",
		}).Log(s.logger, fields...)
	}

	s.logger.Info("follow request accepted", fields...)
	return model.AckResponse{OK: true, State: model.StateFollowing}, nil
}

// DeclineRequest drops the pending request without creating an edge.
func (s *RelationshipService) DeclineRequest(ctx context.Context, targetID, requesterID string) (model.AckResponse, error) {
	if requesterID == targetID {
		return model.AckResponse{}, model.ErrCannotRequestSelf
	}
	deleted, err := s.notifications.DeleteMatching(ctx, requestMatch(requesterID, targetID))
	if err != nil {
		return model.AckResponse{}, err
	}
	if deleted > 0 {
		s.notifications.CreateBestEffort(ctx, model.NewNotification{
			TargetID: requesterID,
			Type:     model.NotificationTypeFollowDeclined,
			SourceID: targetID,
			Message:  "declined your follow request",
		}).Log(s.logger, zap.String("target_id", targetID), zap.String("requester_id", requesterID))
	}
	return model.AckResponse{OK: true, State: model.StateRequestRemoved}, nil
}

// Block writes the block edge. Removing follows and pending requests in both
// directions is best-effort and never fails the block.
func (s *RelationshipService) Block(ctx context.Context, blockerID, blockedID string) (model.AckResponse, error) {
	if blockerID == blockedID {
		return model.AckResponse{}, model.ErrCannotBlockSelf
	}
	if err := s.blockRepo.Create(ctx, blockerID, blockedID); err != nil {
		return model.AckResponse{}, err
	}

	fields := []zap.Field{zap.String("blocker_id", blockerID), zap.String("blocked_id", blockedID)}
	for _, o := range s.severEdges(ctx, blockerID, blockedID) {
		o.Log(s.logger, fields...)
	}
	s.logger.Info("blocked", fields...)
	return model.AckResponse{OK: true, State: model.StateBlocked}, nil
}

func (s *RelationshipService) severEdges(ctx context.Context, a, b string) []model.Outcome {
	outcomes := []model.Outcome{
		model.Failed("unfollow_forward", s.followRepo.Delete(ctx, a, b)),
		model.Failed("unfollow_reverse", s.followRepo.Delete(ctx, b, a)),
	}
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		source, target := pair[0], pair[1]
		for _, t := range []string{model.NotificationTypeFollow, model.NotificationTypeFollowRequest} {
			outcomes = append(outcomes, s.notifications.DeleteMatchingBestEffort(ctx, model.NotificationMatch{
				TargetID: target, Type: t, SourceID: source,
			}))
		}
	}
	return outcomes
}

// Unblock removes the block edge. Former follows are not restored.
func (s *RelationshipService) Unblock(ctx context.Context, blockerID, blockedID string) (model.AckResponse, error) {
	if blockerID == blockedID {
		return model.AckResponse{}, model.ErrCannotBlockSelf
	}
	if err := s.blockRepo.Delete(ctx, blockerID, blockedID); err != nil {
		return model.AckResponse{}, err
	}
	return model.AckResponse{OK: true, State: model.StateUnblocked}, nil
}

func (s *RelationshipService) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	return s.followRepo.Exists(ctx, followerID, followeeID)
}

// IsBlocked reports whether blockerID blocked blockedID.
func (s *RelationshipService) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	return s.blockRepo.Exists(ctx, blockerID, blockedID)
}

// HasBlockBetween reports whether either user blocked the other.
func (s *RelationshipService) HasBlockBetween(ctx context.Context, a, b string) (bool, error) {
	ab, err := s.blockRepo.Exists(ctx, a, b)
	if err != nil || ab {
		return ab, err
	}
	return s.blockRepo.Exists(ctx, b, a)
}

func (s *RelationshipService) HasPendingRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	return s.notifications.HasMatching(ctx, requestMatch(requesterID, targetID))
}

func (s *RelationshipService) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	return s.followRepo.FollowingIDs(ctx, userID)
}

func (s *RelationshipService) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return s.followRepo.FollowerIDs(ctx, userID)
}

// CountFollowers counts edges with a query; there is no maintained counter.
func (s *RelationshipService) CountFollowers(ctx context.Context, userID string) (int, error) {
	ids, err := s.followRepo.FollowerIDs(ctx, userID)
	return len(ids), err
}

func (s *RelationshipService) CountFollowing(ctx context.Context, userID string) (int, error) {
	ids, err := s.followRepo.FollowingIDs(ctx, userID)
	return len(ids), err
}

// ListFollowers returns follower summaries. Enrichment failures shrink the list
// rather than failing it.
func (s *RelationshipService) ListFollowers(ctx context.Context, userID string) (*model.UserListResponse, error) {
	ids, err := s.followRepo.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, ids), nil
}

func (s *RelationshipService) ListFollowing(ctx context.Context, userID string) (*model.UserListResponse, error) {
	ids, err := s.followRepo.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, ids), nil
}

// ListBlocked returns the users userID blocked, most recent first.
func (s *RelationshipService) ListBlocked(ctx context.Context, userID string) (*model.UserListResponse, error) {
	blocks, err := s.blockRepo.BlockedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	latestFirst(blocks)
	ids := make([]string, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.BlockedID)
	}
	return s.summarize(ctx, ids), nil
}

func latestFirst(blocks []model.Block) {
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].CreatedAt.After(blocks[j].CreatedAt) })
}

func (s *RelationshipService) summarize(ctx context.Context, ids []string) *model.UserListResponse {
	users, err := s.users.SummaryList(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to resolve user summaries", zap.Int("ids", len(ids)), zap.Error(err))
	}
	return &model.UserListResponse{Users: users, Count: len(ids)}
}

// BlockSet returns every user with a block edge to or from userID. On a
// partial failure it returns what it has together with the error.
func (s *RelationshipService) BlockSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	var errs []error

	blocks, err := s.blockRepo.BlockedIDs(ctx, userID)
	if err != nil {
		errs = append(errs, err)
	}
	for _, b := range blocks {
		set[b.BlockedID] = struct{}{}
	}

	blockers, err := s.blockRepo.BlockedByIDs(ctx, userID)
	if err != nil {
		errs = append(errs, err)
	}
	for _, id := range blockers {
		set[id] = struct{}{}
	}
	return set, errors.Join(errs...)
}

// RemoveAll deletes every follow and block edge touching userID, in both
// directions. Used by account deletion.
func (s *RelationshipService) RemoveAll(ctx context.Context, userID string) []model.Outcome {
	var outcomes []model.Outcome

	following, err := s.followRepo.FollowingIDs(ctx, userID)
	outcomes = append(outcomes, model.Failed("follows_out", s.eachID(following, err, func(id string) error {
		return s.followRepo.Delete(ctx, userID, id)
	})))

	followers, err := s.followRepo.FollowerIDs(ctx, userID)
	outcomes = append(outcomes, model.Failed("follows_in", s.eachID(followers, err, func(id string) error {
		return s.followRepo.Delete(ctx, id, userID)
	})))

	blocks, err := s.blockRepo.BlockedIDs(ctx, userID)
	blockedIDs := make([]string, 0, len(blocks))
	for _, b := range blocks {
		blockedIDs = append(blockedIDs, b.BlockedID)
	}
	outcomes = append(outcomes, model.Failed("blocks_out", s.eachID(blockedIDs, err, func(id string) error {
		return s.blockRepo.Delete(ctx, userID, id)
	})))

	blockers, err := s.blockRepo.BlockedByIDs(ctx, userID)
	outcomes = append(outcomes, model.Failed("blocks_in", s.eachID(blockers, err, func(id string) error {
		return s.blockRepo.Delete(ctx, id, userID)
	})))
	return outcomes
}

// eachID applies fn to every id, collecting failures. listErr short-circuits.
func (s *RelationshipService) eachID(ids []string, listErr error, fn func(id string) error) error {
	if listErr != nil {
		return fmt.Errorf("list: %w", listErr)
	}
	var errs []error
	for _, id := range ids {
		if err := fn(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
