package handler

import (
	"Parley/internal/api/dto"
	"Parley/internal/pkg/response"
	"Parley/internal/pkg/util"
	"Parley/internal/service"

	"github.com/gin-gonic/gin"
)

type IMHandler struct {
	imService     service.IMService
	statusService service.StatusService
}

func NewIMHandler(imService service.IMService, statusService service.StatusService) *IMHandler {
	return &IMHandler{
		imService:     imService,
		statusService: statusService,
	}
}

// CreateConversation 获取或创建与某用户的单聊
func (s *IMHandler) CreateConversation(c *gin.Context) {
	var req dto.CreateConversationDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	res, err := s.imService.GetOrCreateConversation(c.Request.Context(), currentUserID(c), req.ParticipantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetConversationList 获取会话列表
func (s *IMHandler) GetConversationList(c *gin.Context) {
	res, err := s.imService.ListConversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *IMHandler) GetConversation(c *gin.Context) {
	res, err := s.imService.GetConversation(c.Request.Context(), currentUserID(c), pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// MarkAsRead 整个会话标记已读
func (s *IMHandler) MarkAsRead(c *gin.Context) {
	if err := s.statusService.MarkConversationRead(c.Request.Context(), currentUserID(c), pathID(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// GetChatHistory 获取历史消息
func (s *IMHandler) GetChatHistory(c *gin.Context) {
	var req dto.HistoryQueryDTO
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}
	res, err := s.imService.GetMessages(c.Request.Context(), currentUserID(c), pathID(c, "id"), req.Before, req.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// SendMessage HTTP 发送, 不产生 message:sent 回执
func (s *IMHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}
	res, err := s.imService.SendMessage(c.Request.Context(), currentUserID(c), &req, "")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *IMHandler) EditMessage(c *gin.Context) {
	var req dto.EditMessageDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}
	res, err := s.imService.EditMessage(c.Request.Context(), currentUserID(c), c.Param("id"), req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// DeleteMessage forEveryone 可放在 body 或查询参数
func (s *IMHandler) DeleteMessage(c *gin.Context) {
	var req dto.DeleteMessageDTO
	_ = c.ShouldBindQuery(&req)
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, service.ErrParamInvalid)
			return
		}
	}
	if err := s.imService.DeleteMessage(c.Request.Context(), currentUserID(c), c.Param("id"), req.ForEveryone); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
