package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/mongo"
	"Parley/internal/realtime"
	"Parley/internal/repository"
	"context"
	"fmt"
	log "log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IMService 会话与消息的分发
type IMService interface {
	SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageDTO, origin realtime.ConnID) (*dto.MessageDTO, error)
	EditMessage(ctx context.Context, userID uint64, messageID, content string) (*dto.MessageDTO, error)
	DeleteMessage(ctx context.Context, userID uint64, messageID string, forEveryone bool) error
	GetOrCreateConversation(ctx context.Context, userID, participantID uint64) (*dto.ConversationDTO, error)
	ListConversations(ctx context.Context, userID uint64) ([]*dto.ConversationDTO, error)
	GetConversation(ctx context.Context, userID, conversationID uint64) (*dto.ConversationDTO, error)
	GetMessages(ctx context.Context, userID, conversationID uint64, before time.Time, limit int) ([]*dto.MessageDTO, error)
}

type imServiceImpl struct {
	userRepo         repository.UserRepo
	conversationRepo repository.ConversationRepo
	messageRepo      mongo.MessageRepo
	broadcaster      realtime.Broadcaster
	media            MediaService
	notifier         Notifier
}

// NewIMService media 与 notifier 可以为 nil
func NewIMService(
	userRepo repository.UserRepo,
	conversationRepo repository.ConversationRepo,
	messageRepo mongo.MessageRepo,
	broadcaster realtime.Broadcaster,
	media MediaService,
	notifier Notifier,
) IMService {
	return &imServiceImpl{
		userRepo:         userRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		broadcaster:      broadcaster,
		media:            media,
		notifier:         notifier,
	}
}

// SendMessage origin 非空表示来自实时通道, 需要额外回执给发起连接
func (s *imServiceImpl) SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageDTO, origin realtime.ConnID) (*dto.MessageDTO, error) {
	msgType := req.Type
	if msgType == "" {
		msgType = consts.MessageTypeText
	}
	if utf8.RuneCountInString(req.Content) > consts.MaxMessageLength {
		return nil, ErrParamInvalid
	}
	if msgType == consts.MessageTypeText && strings.TrimSpace(req.Content) == "" {
		return nil, ErrParamInvalid
	}
	if msgType != consts.MessageTypeText && (req.Media == nil || req.Media.URL == "") {
		return nil, ErrParamInvalid
	}

	conv, err := s.conversationRepo.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	// 非成员与不存在不做区分
	if conv == nil || !conv.IsActive || !conv.HasMember(senderID) {
		return nil, ErrConversationNotFound
	}

	now := time.Now()
	msg := mongo.NewMessage(conv.ID, senderID, msgType, req.Content, now)
	if req.ReplyTo != "" {
		msg.ReplyTo = s.resolveReply(ctx, conv.ID, req.ReplyTo)
	}
	if req.Media != nil && req.Media.URL != "" {
		msg.Media = s.claimMedia(ctx, req.Media)
	}

	if err = s.messageRepo.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	// 消息已落库, 聚合状态更新失败只记录
	if err = s.conversationRepo.RecordMessage(ctx, conv.ID, senderID, msg.ID.Hex(), now); err != nil {
		log.ErrorContext(ctx, "failed to update conversation aggregate", "conversation_id", conv.ID, "message_id", msg.ID.Hex(), "err", err)
	}

	out := toMessageDTO(msg, s.brief(ctx, senderID))
	s.broadcaster.ToRoom(realtime.RoomName(conv.ID), realtime.NewEvent(realtime.EventMessageNew, out), "")
	if origin != "" {
		s.broadcaster.ToConn(origin, realtime.NewEvent(realtime.EventMessageSent, &dto.MessageSentPayload{
			TempID:  req.TempID,
			Message: out,
		}))
	}

	if s.notifier != nil {
		recipients := slices.DeleteFunc(conv.MemberIDs(), func(id uint64) bool { return id == senderID })
		go s.notifier.NotifyNewMessage(context.WithoutCancel(ctx), out, recipients)
	}
	return out, nil
}

// EditMessage 只有作者可以编辑, 已全局删除的消息视为不存在
func (s *imServiceImpl) EditMessage(ctx context.Context, userID uint64, messageID, content string) (*dto.MessageDTO, error) {
	if strings.TrimSpace(content) == "" || utf8.RuneCountInString(content) > consts.MaxMessageLength {
		return nil, ErrParamInvalid
	}

	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.SenderID != userID || msg.IsDeleted {
		return nil, ErrMessageNotFound
	}

	updated, err := s.messageRepo.UpdateContent(ctx, msg.ID, content, time.Now())
	if err != nil {
		return nil, fmt.Errorf("edit message %s: %w", messageID, err)
	}
	if updated == nil {
		return nil, ErrMessageNotFound
	}

	out := toMessageDTO(updated, s.brief(ctx, userID))
	s.broadcaster.ToRoom(realtime.RoomName(updated.ConversationID), realtime.NewEvent(realtime.EventMessageEdited, out), "")
	return out, nil
}

// DeleteMessage forEveryone 只有作者可以执行; 否则仅对自己隐藏
func (s *imServiceImpl) DeleteMessage(ctx context.Context, userID uint64, messageID string, forEveryone bool) error {
	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}

	if forEveryone {
		if msg.SenderID != userID {
			return ErrForbidden
		}
		if _, err = s.messageRepo.MarkDeleted(ctx, msg.ID, time.Now()); err != nil {
			return fmt.Errorf("delete message %s: %w", messageID, err)
		}
	} else {
		ok, err := s.conversationRepo.IsMember(ctx, msg.ConversationID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMessageNotFound
		}
		if err = s.messageRepo.HideFor(ctx, msg.ID, userID); err != nil {
			return fmt.Errorf("hide message %s: %w", messageID, err)
		}
	}

	s.broadcaster.ToRoom(realtime.RoomName(msg.ConversationID), realtime.NewEvent(realtime.EventMessageDeleted, &dto.MessageDeletedPayload{
		MessageID:   msg.ID.Hex(),
		ForEveryone: forEveryone,
		DeletedBy:   userID,
	}), "")
	return nil
}

// GetOrCreateConversation 同一对用户只有一个会话, 并发创建依赖 peer_key 唯一索引
func (s *imServiceImpl) GetOrCreateConversation(ctx context.Context, userID, participantID uint64) (*dto.ConversationDTO, error) {
	if participantID == 0 || participantID == userID {
		return nil, ErrTargetUserInvalid
	}
	target, err := s.userRepo.GetUserById(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	minID, maxID := min(userID, participantID), max(userID, participantID)
	peerKey := fmt.Sprintf("%d_%d", minID, maxID)

	conv, err := s.conversationRepo.GetConversationByPeerKey(ctx, peerKey)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		now := time.Now()
		conv = &model.Conversation{
			Type:          consts.ConversationTypeDirect,
			PeerKey:       peerKey,
			LastMessageAt: now,
			IsActive:      true,
		}
		members := []*model.ConversationMember{
			{UserID: minID, JoinedAt: now},
			{UserID: maxID, JoinedAt: now},
		}
		if err = s.conversationRepo.CreateConversation(ctx, conv, members); err != nil {
			if !repository.IsDuplicateKey(err) {
				return nil, fmt.Errorf("create conversation: %w", err)
			}
			// 对方同时创建成功, 重新读取
			conv, err = s.conversationRepo.GetConversationByPeerKey(ctx, peerKey)
			if err != nil {
				return nil, err
			}
			if conv == nil {
				return nil, UnExpectedError
			}
		}
	}

	// 让双方已在线的连接进入新房间
	room := realtime.RoomName(conv.ID)
	s.broadcaster.JoinUser(minID, room)
	s.broadcaster.JoinUser(maxID, room)

	list, err := s.buildConversations(ctx, userID, []*model.Conversation{conv})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

func (s *imServiceImpl) ListConversations(ctx context.Context, userID uint64) ([]*dto.ConversationDTO, error) {
	convs, err := s.conversationRepo.GetUserConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.buildConversations(ctx, userID, convs)
}

func (s *imServiceImpl) GetConversation(ctx context.Context, userID, conversationID uint64) (*dto.ConversationDTO, error) {
	conv, err := s.conversationRepo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || !conv.IsActive || !conv.HasMember(userID) {
		return nil, ErrConversationNotFound
	}
	list, err := s.buildConversations(ctx, userID, []*model.Conversation{conv})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

// GetMessages 按时间倒序分页, 返回时转为正序
func (s *imServiceImpl) GetMessages(ctx context.Context, userID, conversationID uint64, before time.Time, limit int) ([]*dto.MessageDTO, error) {
	ok, err := s.conversationRepo.IsMember(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversationNotFound
	}

	if limit <= 0 {
		limit = consts.DefaultPageSize
	}
	if limit > consts.MaxPageSize {
		limit = consts.MaxPageSize
	}

	msgs, err := s.messageRepo.GetHistory(ctx, conversationID, userID, before, limit)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]uint64, 0, 2)
	for _, m := range msgs {
		if !slices.Contains(senderIDs, m.SenderID) {
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	users, err := s.userRepo.GetUserByIds(ctx, senderIDs)
	if err != nil {
		return nil, err
	}
	briefs := toUserBriefMap(users)

	out := make([]*dto.MessageDTO, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, toMessageDTO(msgs[i], briefs[msgs[i].SenderID]))
	}
	return out, nil
}

func (s *imServiceImpl) buildConversations(ctx context.Context, viewerID uint64, convs []*model.Conversation) ([]*dto.ConversationDTO, error) {
	var userIDs []uint64
	var lastIDs []string
	for _, c := range convs {
		for _, id := range c.MemberIDs() {
			if !slices.Contains(userIDs, id) {
				userIDs = append(userIDs, id)
			}
		}
		if c.LastMessageID != "" {
			lastIDs = append(lastIDs, c.LastMessageID)
		}
	}

	users, err := s.userRepo.GetUserByIds(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	briefs := toUserBriefMap(users)

	lastMessages := map[string]*mongo.Message{}
	if len(lastIDs) > 0 {
		if lastMessages, err = s.messageRepo.GetMessagesByIDs(ctx, lastIDs); err != nil {
			return nil, err
		}
	}

	out := make([]*dto.ConversationDTO, 0, len(convs))
	for _, c := range convs {
		item := &dto.ConversationDTO{
			ID:            c.ID,
			Type:          c.Type,
			Participants:  make([]*dto.UserBrief, 0, len(c.Members)),
			LastMessageAt: c.LastMessageAt,
			IsActive:      c.IsActive,
			CreatedAt:     c.CreatedAt,
		}
		for _, m := range c.Members {
			if b, ok := briefs[m.UserID]; ok {
				item.Participants = append(item.Participants, b)
			}
			if m.UserID == viewerID {
				item.UnreadCount = m.UnreadCount
			}
		}
		if last, ok := lastMessages[c.LastMessageID]; ok {
			item.LastMessage = toMessageDTO(last, briefs[last.SenderID])
		}
		out = append(out, item)
	}
	return out, nil
}

// resolveReply 引用不存在或跨会话时忽略
func (s *imServiceImpl) resolveReply(ctx context.Context, conversationID uint64, replyTo string) *primitive.ObjectID {
	ref, err := s.messageRepo.GetMessage(ctx, replyTo)
	if err != nil {
		log.WarnContext(ctx, "failed to load reply target", "reply_to", replyTo, "err", err)
		return nil
	}
	if ref == nil || ref.ConversationID != conversationID {
		log.DebugContext(ctx, "reply target dropped", "reply_to", replyTo)
		return nil
	}
	return &ref.ID
}

func (s *imServiceImpl) claimMedia(ctx context.Context, media *dto.MediaDTO) *mongo.Media {
	if s.media != nil {
		return s.media.Claim(ctx, media)
	}
	return &mongo.Media{
		URL:       media.URL,
		Filename:  media.Filename,
		MimeType:  media.MimeType,
		Size:      media.Size,
		Duration:  media.Duration,
		Thumbnail: media.Thumbnail,
	}
}

func (s *imServiceImpl) brief(ctx context.Context, userID uint64) *dto.UserBrief {
	user, err := s.userRepo.GetUserById(ctx, userID)
	if err != nil {
		log.WarnContext(ctx, "failed to load sender", "user_id", userID, "err", err)
		return nil
	}
	return toUserBrief(user)
}
