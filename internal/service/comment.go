package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
)

type CommentService struct {
	commentRepo   repository.CommentRepository
	postRepo      repository.PostRepository
	users         *UserService
	relationships *RelationshipService
	visibility    *VisibilityService
	moderation    *ModerationService
	notifications *NotificationService
	mentions      *mentionNotifier
	logger        *zap.Logger
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	users *UserService,
	relationships *RelationshipService,
	visibility *VisibilityService,
	moderation *ModerationService,
	notifications *NotificationService,
	logger *zap.Logger,
) *CommentService {
	logger = logger.Named("comments")
	return &CommentService{
		commentRepo:   commentRepo,
		postRepo:      postRepo,
		users:         users,
		relationships: relationships,
		visibility:    visibility,
		moderation:    moderation,
		notifications: notifications,
		mentions:      &mentionNotifier{users: users, notifications: notifications, logger: logger},
		logger:        logger,
	}
}

// Create adds a comment. Replies nest one level: a reply to a reply is
// attached to the top-level comment and addressed with an @handle prefix.
func (s *CommentService) Create(ctx context.Context, userID, postID string, req model.CreateCommentRequest) (*model.CommentPreview, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, model.ErrCommentRequired
	}

	post, err := s.postRepo.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.visibility.CanComment(ctx, userID, post)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, model.ErrCommentNotAllowed
	}

	var parent *model.Comment
	parentID := strings.TrimSpace(req.ParentCommentID)
	if parentID != "" {
		parent, err = s.commentRepo.Get(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, model.ErrParentMismatch
		}
		if parent.ParentCommentID != "" {
			parentID = parent.ParentCommentID
			if prefix := "@" + parent.Handle; parent.Handle != "" && !strings.HasPrefix(strings.ToLower(text), prefix) {
				text = prefix + " " + text
			}
		}
	}
	if utf8.RuneCountInString(text) > model.MaxCommentLength {
		return nil, model.ErrCommentTooLong
	}

	if err := s.moderation.Check(ctx, text); err != nil {
		return nil, err
	}

	author, err := s.users.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		ID:              uuid.NewString(),
		PostID:          postID,
		ParentCommentID: parentID,
		UserID:          userID,
		Handle:          author.Handle,
		Text:            text,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.notify(ctx, post, parent, comment)

	preview := comment.Preview()
	preview.AvatarKey = author.AvatarKey
	return &preview, nil
}

// notify tells the replied-to author (reply), the post author (comment) and
// mentioned users (mention). Nobody gets two of these for one comment.
func (s *CommentService) notify(ctx context.Context, post *model.Post, parent *model.Comment, c *model.Comment) {
	fields := []zap.Field{zap.String("comment_id", c.ID), zap.String("post_id", post.ID)}
	notified := map[string]struct{}{c.UserID: {}}

	if parent != nil {
		s.notifications.CreateBestEffort(ctx, model.NewNotification{
			TargetID:  parent.UserID,
			Type:      model.NotificationTypeReply,
			SourceID:  c.UserID,
			ContentID: c.ID,
			PostID:    post.ID,
			Message:   "replied to your comment",
		}).Log(s.logger, fields...)
		notified[parent.UserID] = struct{}{}
	}
	if _, done := notified[post.UserID]; !done {
		s.notifications.CreateBestEffort(ctx, model.NewNotification{
			TargetID:  post.UserID,
			Type:      model.NotificationTypeComment,
			SourceID:  c.UserID,
			ContentID: c.ID,
			PostID:    post.ID,
			Message:   "commented on your post",
		}).Log(s.logger, fields...)
		notified[post.UserID] = struct{}{}
	}

	var mentions []string
	for _, h := range ExtractMentions(c.Text) {
		id, err := s.users.ResolveHandle(ctx, h)
		if err != nil {
			continue
		}
		if _, done := notified[id]; !done {
			mentions = append(mentions, "@"+h)
		}
	}
	s.mentions.notify(ctx, c.UserID, strings.Join(mentions, " "), c.ID, post.ID)
}

// List returns a post's comments oldest first with live handles and avatars.
// Comments by users with a block to or from the viewer are hidden.
func (s *CommentService) List(ctx context.Context, viewerID, postID string) (*model.CommentListResponse, error) {
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

	comments, err := s.commentRepo.ListByPost(ctx, postID, 0)
	if err != nil {
		return nil, err
	}

	blocked, err := s.relationships.BlockSet(ctx, viewerID)
	if err != nil {
		s.logger.Warn("block set lookup failed, comments unfiltered", zap.String("viewer_id", viewerID), zap.Error(err))
	}

	previews := make([]model.CommentPreview, 0, len(comments))
	ids := make([]string, 0, len(comments))
	for i := range comments {
		if _, skip := blocked[comments[i].UserID]; skip {
			continue
		}
		previews = append(previews, comments[i].Preview())
		ids = append(ids, comments[i].UserID)
	}

	sums, err := s.users.ResolveSummaries(ctx, ids)
	if err != nil {
		s.logger.Warn("commenter hydration failed", zap.String("post_id", postID), zap.Error(err))
	}
	for i := range previews {
		if sum, ok := sums[previews[i].UserID]; ok {
			previews[i].AvatarKey = sum.AvatarKey
			if sum.Handle != "" {
				previews[i].Handle = sum.Handle
			}
		}
	}
	return &model.CommentListResponse{Comments: previews, Count: len(previews)}, nil
}

// Delete removes a comment (by its author or the post author) together with
// its direct replies and the notifications all of them produced.
func (s *CommentService) Delete(ctx context.Context, userID, commentID string) error {
	comment, err := s.commentRepo.Get(ctx, commentID)
	if err != nil {
		return err
	}

	post, err := s.postRepo.Get(ctx, comment.PostID)
	if err != nil && !errors.Is(err, model.ErrPostNotFound) {
		return err
	}
	postOwner := post != nil && post.UserID == userID
	if comment.UserID != userID && !postOwner {
		return model.ErrNotCommentOwner
	}

	replies, err := s.deleteCascade(ctx, post, comment)
	if err != nil {
		return err
	}
	s.logger.Info("comment deleted", zap.String("comment_id", commentID), zap.Int("replies", replies))
	return nil
}

// deleteCascade deletes comment, then its direct replies when it is top level,
// then the notifications each of them produced. post may be nil when the post
// is already gone. Only the first delete is authoritative; the rest is logged.
func (s *CommentService) deleteCascade(ctx context.Context, post *model.Post, comment *model.Comment) (int, error) {
	if err := s.commentRepo.Delete(ctx, comment); err != nil {
		return 0, err
	}

	doomed := []model.Comment{*comment}
	if comment.ParentCommentID == "" {
		siblings, err := s.commentRepo.ListByPost(ctx, comment.PostID, 0)
		if err != nil {
			model.Failed("comment_replies", err).Log(s.logger, zap.String("comment_id", comment.ID))
		}
		for i := range siblings {
			if siblings[i].ParentCommentID != comment.ID {
				continue
			}
			model.Failed("comment_reply", s.commentRepo.Delete(ctx, &siblings[i])).Log(s.logger, zap.String("reply_id", siblings[i].ID))
			doomed = append(doomed, siblings[i])
		}
	}

	for _, c := range doomed {
		s.unnotify(ctx, post, comment, &c).Log(s.logger, zap.String("comment_id", c.ID))
	}
	return len(doomed) - 1, nil
}

// unnotify removes notifications whose content is c from every ledger it may have reached.
func (s *CommentService) unnotify(ctx context.Context, post *model.Post, root, c *model.Comment) model.Outcome {
	targets := []string{root.UserID}
	if post != nil {
		targets = append(targets, post.UserID)
	}
	if c.ParentCommentID != "" {
		if parent, err := s.commentRepo.Get(ctx, c.ParentCommentID); err == nil {
			targets = append(targets, parent.UserID)
		}
	}
	targets = append(targets, s.mentions.mentionedIDs(ctx, c.Text)...)
	return s.notifications.DeleteForContent(ctx, targets, c.ID)
}

// DeleteAllByUser removes every comment userID wrote, with the same reply and
// notification cascade as Delete. Used by account deletion.
func (s *CommentService) DeleteAllByUser(ctx context.Context, userID string) model.Outcome {
	const step = "comments"
	comments, err := s.commentRepo.ListByUser(ctx, userID)
	if err != nil {
		return model.Failed(step, err)
	}
	var errs []error
	for i := range comments {
		post, err := s.postRepo.Get(ctx, comments[i].PostID)
		if err != nil && !errors.Is(err, model.ErrPostNotFound) {
			errs = append(errs, err)
			continue
		}
		if _, err := s.deleteCascade(ctx, post, &comments[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return model.Failed(step, errors.Join(errs...))
}
