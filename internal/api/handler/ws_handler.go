package handler

import (
	"Parley/internal/api/dto"
	"Parley/internal/api/middleware"
	"Parley/internal/pkg/logger"
	"Parley/internal/pkg/response"
	"Parley/internal/realtime"
	"Parley/internal/service"
	"context"
	"errors"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WsHandler struct {
	authService     service.AuthService
	presenceService service.PresenceService
	roomService     service.RoomService
	imService       service.IMService
	statusService   service.StatusService
	typingService   service.TypingService
	broadcaster     realtime.Broadcaster
	upgrader        websocket.Upgrader
	clientCfg       realtime.ClientConfig
}

func NewWsHandler(
	authService service.AuthService,
	presenceService service.PresenceService,
	roomService service.RoomService,
	imService service.IMService,
	statusService service.StatusService,
	typingService service.TypingService,
	broadcaster realtime.Broadcaster,
	clientCfg realtime.ClientConfig,
	allowedOrigins []string,
) *WsHandler {
	return &WsHandler{
		authService:     authService,
		presenceService: presenceService,
		roomService:     roomService,
		imService:       imService,
		statusService:   statusService,
		typingService:   typingService,
		broadcaster:     broadcaster,
		clientCfg:       clientCfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
			},
		},
	}
}

// Connect 鉴权通过后才升级协议, 失败时不产生任何连接状态
func (s *WsHandler) Connect(c *gin.Context) {
	user, err := s.authService.Authenticate(c.Request.Context(), middleware.BearerToken(c))
	if err != nil {
		log.WarnContext(c.Request.Context(), "WS auth rejected", "err", err)
		response.Reject(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "WS upgrade failed", "err", err)
		return
	}

	client := realtime.NewClient(user.ID, conn, s.clientCfg)
	// 连接的生命周期长于请求, 保留 trace_id 但不继承取消
	ctx := logger.WithConnection(context.WithoutCancel(c.Request.Context()), user.ID, string(client.ID()))

	if err = s.presenceService.Connect(ctx, client); err != nil {
		log.ErrorContext(ctx, "WS register failed", "err", err)
		_ = conn.Close()
		return
	}
	log.InfoContext(ctx, "WS connection established")

	go client.WritePump()
	err = client.ReadPump(func(frame []byte) {
		s.dispatch(ctx, client, frame)
	})

	client.Close()
	s.presenceService.Disconnect(ctx, client)
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.WarnContext(ctx, "WS connection closed unexpectedly", "err", err)
		return
	}
	log.InfoContext(ctx, "WS connection closed")
}

// dispatch 单个意图失败只回一条 error 事件, 不断开连接
func (s *WsHandler) dispatch(ctx context.Context, client *realtime.Client, frame []byte) {
	intent, err := realtime.Decode(frame)
	if err != nil {
		s.fail(ctx, client, "", err)
		return
	}

	userID := client.UserID()
	switch in := intent.(type) {
	case *realtime.SendMessage:
		_, err = s.imService.SendMessage(ctx, userID, &in.SendMessageDTO, client.ID())
	case *realtime.MarkDelivered:
		err = s.statusService.MarkDelivered(ctx, userID, in.MessageID)
	case *realtime.MarkRead:
		if in.MessageID != "" {
			err = s.statusService.MarkRead(ctx, userID, in.MessageID)
		} else {
			err = s.statusService.MarkConversationRead(ctx, userID, in.ConversationID)
		}
	case *realtime.EditMessage:
		_, err = s.imService.EditMessage(ctx, userID, in.MessageID, in.Content)
	case *realtime.DeleteMessage:
		err = s.imService.DeleteMessage(ctx, userID, in.MessageID, in.ForEveryone)
	case *realtime.Typing:
		err = s.typingService.Relay(ctx, userID, client.ID(), in.ConversationID, in.IsTyping)
	case *realtime.JoinConversation:
		err = s.roomService.Join(ctx, userID, client.ID(), in.ConversationID)
	case *realtime.LeaveConversation:
		s.roomService.Leave(client.ID(), in.ConversationID)
	}
	if err != nil {
		s.fail(ctx, client, intent.Name(), err)
	}
}

func (s *WsHandler) fail(ctx context.Context, client *realtime.Client, event string, err error) {
	known, code, ok := service.Classify(err)
	switch {
	case !ok:
		log.ErrorContext(ctx, "WS intent failed", "event", event, "err", err)
	case errors.Is(known, realtime.ErrMalformedFrame), errors.Is(known, realtime.ErrUnknownIntent), errors.Is(known, realtime.ErrInvalidPayload):
		log.WarnContext(ctx, "WS frame rejected", "err", err)
	default:
		log.WarnContext(ctx, "WS intent rejected", "event", event, "err", err)
	}

	s.broadcaster.ToConn(client.ID(), realtime.NewEvent(realtime.EventError, &dto.ErrorPayload{
		Event:   event,
		Message: known.Error(),
		Code:    code,
	}))
}
