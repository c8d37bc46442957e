package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/model"
	"Parley/internal/pkg/mongo"

	"github.com/jinzhu/copier"
)

func toUserBrief(u *model.User) *dto.UserBrief {
	if u == nil {
		return nil
	}
	brief := &dto.UserBrief{}
	_ = copier.Copy(brief, u)
	return brief
}

func toUserDTO(u *model.User) *dto.UserDTO {
	out := &dto.UserDTO{}
	_ = copier.Copy(out, u)
	out.BlockedUsers = u.BlockedIDs()
	return out
}

func toUserBriefMap(users []*model.User) map[uint64]*dto.UserBrief {
	m := make(map[uint64]*dto.UserBrief, len(users))
	for _, u := range users {
		m[u.ID] = toUserBrief(u)
	}
	return m
}

// toMessageDTO 全局删除的消息不下发内容与附件
func toMessageDTO(m *mongo.Message, sender *dto.UserBrief) *dto.MessageDTO {
	out := &dto.MessageDTO{
		ID:             m.ID.Hex(),
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         sender,
		Type:           m.Type,
		Content:        m.Content,
		Status: dto.MessageStatusDTO{
			Sent:      m.Status.Sent,
			Delivered: m.Status.Delivered,
			Read:      m.Status.Read,
		},
		DeliveredTo: toReceipts(m.DeliveredTo),
		ReadBy:      toReceipts(m.ReadBy),
		IsEdited:    m.IsEdited,
		EditedAt:    m.EditedAt,
		IsDeleted:   m.IsDeleted,
		DeletedAt:   m.DeletedAt,
		DeletedFor:  append([]uint64{}, m.DeletedFor...),
		CreatedAt:   m.CreatedAt,
	}
	if m.ReplyTo != nil {
		out.ReplyTo = m.ReplyTo.Hex()
	}
	if m.Media != nil {
		out.Media = &dto.MediaDTO{
			URL:       m.Media.URL,
			Filename:  m.Media.Filename,
			MimeType:  m.Media.MimeType,
			Size:      m.Media.Size,
			Duration:  m.Media.Duration,
			Thumbnail: m.Media.Thumbnail,
		}
	}
	if m.IsDeleted {
		out.Content = ""
		out.Media = nil
	}
	return out
}

func toReceipts(receipts []mongo.Receipt) []dto.ReceiptDTO {
	out := make([]dto.ReceiptDTO, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, dto.ReceiptDTO{UserID: r.UserID, At: r.At})
	}
	return out
}
