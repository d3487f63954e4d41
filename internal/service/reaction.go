package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
)

// ReactionService keeps one emoji per (post, user) plus per-emoji counters.
// The counter is adjusted before the row; if the row write fails the counter
// is put back. Drift from concurrent toggles by the same user is tolerated.
type ReactionService struct {
	reactionRepo  repository.ReactionRepository
	postRepo      repository.PostRepository
	visibility    *VisibilityService
	notifications *NotificationService
	logger        *zap.Logger
}

func NewReactionService(
	reactionRepo repository.ReactionRepository,
	postRepo repository.PostRepository,
	visibility *VisibilityService,
	notifications *NotificationService,
	logger *zap.Logger,
) *ReactionService {
	return &ReactionService{
		reactionRepo:  reactionRepo,
		postRepo:      postRepo,
		visibility:    visibility,
		notifications: notifications,
		logger:        logger.Named("reactions"),
	}
}

func reactionMatch(post *model.Post, userID string) model.NotificationMatch {
	return model.NotificationMatch{
		TargetID:  post.UserID,
		Type:      model.NotificationTypeReaction,
		SourceID:  userID,
		ContentID: post.ID,
	}
}

// Toggle adds emoji, replaces a different previous emoji, or removes the
// reaction when the same emoji is sent again.
func (s *ReactionService) Toggle(ctx context.Context, userID, postID, emoji string) (*model.ReactionToggleResult, error) {
	if err := model.ValidateEmoji(emoji); err != nil {
		return nil, err
	}
	post, err := s.postRepo.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := s.visibility.CanViewContent(ctx, userID, post.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrProfilePrivate
	}

	current, found, err := s.reactionRepo.Get(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	var action string
	switch {
	case found && current.Emoji == emoji:
		action = model.ReactionRemoved
		err = s.remove(ctx, current)
	case found:
		action = model.ReactionReplaced
		err = s.replace(ctx, current, emoji)
	default:
		action = model.ReactionAdded
		err = s.add(ctx, &model.Reaction{PostID: postID, UserID: userID, Emoji: emoji, CreatedAt: time.Now().UTC()})
	}
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("post_id", postID), zap.String("user_id", userID)}
	match := reactionMatch(post, userID)
	switch action {
	case model.ReactionRemoved:
		s.notifications.DeleteMatchingBestEffort(ctx, match).Log(s.logger, fields...)
	case model.ReactionAdded, model.ReactionReplaced:
		s.notifyOnce(ctx, post, userID).Log(s.logger, fields...)
	}

	summary, err := s.Summary(ctx, userID, postID)
	if err != nil {
		// the toggle itself succeeded
		s.logger.Warn("reaction summary failed", append(fields, zap.Error(err))...)
		summary = &model.ReactionSummary{Counts: map[string]int64{}}
	}
	return &model.ReactionToggleResult{Action: action, Summary: *summary}, nil
}

func (s *ReactionService) notifyOnce(ctx context.Context, post *model.Post, userID string) model.Outcome {
	exists, err := s.notifications.HasMatching(ctx, reactionMatch(post, userID))
	if err != nil {
		return model.Failed("reaction_notify", err)
	}
	if exists {
		return model.Skip("reaction_notify")
	}
	return s.notifications.CreateBestEffort(ctx, model.NewNotification{
		TargetID:  post.UserID,
		Type:      model.NotificationTypeReaction,
		SourceID:  userID,
		ContentID: post.ID,
		PostID:    post.ID,
		Message:   "reacted to your post",
	})
}

func (s *ReactionService) add(ctx context.Context, r *model.Reaction) error {
	if _, err := s.reactionRepo.AdjustCount(ctx, r.PostID, r.Emoji, 1); err != nil {
		return err
	}
	if err := s.reactionRepo.Put(ctx, r); err != nil {
		s.compensate(ctx, r.PostID, r.Emoji, -1)
		return err
	}
	return nil
}

func (s *ReactionService) replace(ctx context.Context, old *model.Reaction, emoji string) error {
	if _, err := s.reactionRepo.AdjustCount(ctx, old.PostID, emoji, 1); err != nil {
		return err
	}
	if _, err := s.reactionRepo.AdjustCount(ctx, old.PostID, old.Emoji, -1); err != nil {
		s.compensate(ctx, old.PostID, emoji, -1)
		return err
	}
	next := *old
	next.Emoji = emoji
	next.CreatedAt = time.Now().UTC()
	if err := s.reactionRepo.Put(ctx, &next); err != nil {
		s.compensate(ctx, old.PostID, emoji, -1)
		s.compensate(ctx, old.PostID, old.Emoji, 1)
		return err
	}
	return nil
}

func (s *ReactionService) remove(ctx context.Context, r *model.Reaction) error {
	if _, err := s.reactionRepo.AdjustCount(ctx, r.PostID, r.Emoji, -1); err != nil {
		return err
	}
	if err := s.reactionRepo.Delete(ctx, r.PostID, r.UserID); err != nil {
		s.compensate(ctx, r.PostID, r.Emoji, 1)
		return err
	}
	return nil
}

func (s *ReactionService) compensate(ctx context.Context, postID, emoji string, delta int64) {
	if _, err := s.reactionRepo.AdjustCount(ctx, postID, emoji, delta); err != nil {
		s.logger.Warn("reaction counter left drifted",
			zap.String("post_id", postID), zap.String("emoji", emoji), zap.Int64("delta", delta), zap.Error(err))
	}
}

// Summary returns positive counts and the viewer's own emoji.
func (s *ReactionService) Summary(ctx context.Context, viewerID, postID string) (*model.ReactionSummary, error) {
	counts, err := s.reactionRepo.Counts(ctx, postID)
	if err != nil {
		return nil, err
	}
	visible := make(map[string]int64, len(counts))
	for emoji, n := range counts {
		if n > 0 {
			visible[emoji] = n
		}
	}
	summary := &model.ReactionSummary{Counts: visible}
	if mine, found, err := s.reactionRepo.Get(ctx, postID, viewerID); err == nil && found {
		summary.Mine = mine.Emoji
	}
	return summary, nil
}

// SummaryFor is Summary behind the post visibility check.
func (s *ReactionService) SummaryFor(ctx context.Context, viewerID, postID string) (*model.ReactionSummary, error) {
	post, err := s.postRepo.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := s.visibility.CanViewContent(ctx, viewerID, post.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrProfilePrivate
	}
	return s.Summary(ctx, viewerID, postID)
}

// DeleteAllByUser removes every reaction userID left, decrementing counters.
func (s *ReactionService) DeleteAllByUser(ctx context.Context, userID string) model.Outcome {
	const step = "reactions"
	reactions, err := s.reactionRepo.ListByUser(ctx, userID)
	if err != nil {
		return model.Failed(step, err)
	}
	var errs []error
	for i := range reactions {
		if err := s.remove(ctx, &reactions[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return model.Failed(step, errors.Join(errs...))
}
