package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/singstage/singstage/internal/api/http/converter"
	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/service"
	"github.com/singstage/singstage/internal/store"
	"github.com/singstage/singstage/lib/logger/sl"
)

type RoomController struct {
	rooms    service.RoomInteractor
	store    store.Store
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewRoomController(rooms service.RoomInteractor, st store.Store, log *slog.Logger) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	return &RoomController{
		rooms: rooms,
		store: st,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (c *RoomController) CreateRoom(ctx *gin.Context) {
	type CreateRoomRequest struct {
		AdminName         string `json:"adminName" binding:"required"`
		MicFeatureEnabled bool   `json:"micFeatureEnabled"`
		ScorerEnabled     bool   `json:"scorerEnabled"`
	}
	var req CreateRoomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	room, admin, err := c.rooms.CreateRoom(ctx.Request.Context(), req.AdminName, req.MicFeatureEnabled, req.ScorerEnabled)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"room": converter.RoomToApi(room),
		"user": admin,
	})
}

func (c *RoomController) GetRoom(ctx *gin.Context) {
	room, err := c.rooms.GetRoom(ctx.Request.Context(), ctx.Param("roomID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) RoomExists(ctx *gin.Context) {
	exists, err := c.rooms.RoomExists(ctx.Request.Context(), ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (c *RoomController) JoinRoom(ctx *gin.Context) {
	type JoinRoomRequest struct {
		Name string `json:"name" binding:"required"`
	}
	var req JoinRoomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := c.rooms.JoinRoom(ctx.Request.Context(), ctx.Param("roomID"), req.Name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

func (c *RoomController) LeaveRoom(ctx *gin.Context) {
	err := c.rooms.LeaveRoom(ctx.Request.Context(), ctx.Param("roomID"), ctx.Param("userID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (c *RoomController) ListParticipants(ctx *gin.Context) {
	users, err := c.rooms.ListParticipants(ctx.Request.Context(), ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"participants": users})
}

func (c *RoomController) ListQueue(ctx *gin.Context) {
	songs, err := c.rooms.ListQueue(ctx.Request.Context(), ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"queue": songs})
}

func (c *RoomController) AddToQueue(ctx *gin.Context) {
	var song domain.Song
	if err := ctx.ShouldBindJSON(&song); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if song.ID == "" || song.Title == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "song id and title are required"})
		return
	}

	queued, err := c.rooms.AddToQueue(ctx.Request.Context(), ctx.Param("roomID"), &song)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"song": queued})
}

func (c *RoomController) RemoveFromQueue(ctx *gin.Context) {
	if err := c.rooms.RemoveFromQueue(ctx.Request.Context(), ctx.Param("roomID"), ctx.Param("key")); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (c *RoomController) SetCurrentSong(ctx *gin.Context) {
	type CurrentSongRequest struct {
		Song *domain.Song `json:"song"`
	}
	var req CurrentSongRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := c.rooms.SetCurrentSong(ctx.Request.Context(), ctx.Param("roomID"), req.Song); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (c *RoomController) SetPlayerState(ctx *gin.Context) {
	type PlayerStateRequest struct {
		IsPlaying bool `json:"isPlaying"`
		IsMuted   bool `json:"isMuted"`
	}
	var req PlayerStateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := c.rooms.SetPlayerState(ctx.Request.Context(), ctx.Param("roomID"), req.IsPlaying, req.IsMuted); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StreamEvents upgrades to a websocket and forwards every change under the
// room's subtree, current state first. The feed is what keeps queue and
// player views live on clients that do not talk to the store directly.
func (c *RoomController) StreamEvents(ctx *gin.Context) {
	const op = "http.room.streamEvents"
	roomID := ctx.Param("roomID")
	log := c.log.With(slog.String("op", op), slog.String("room_id", roomID))

	if _, err := c.rooms.GetRoom(ctx.Request.Context(), roomID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", sl.Err(err))
		return
	}

	events := make(chan store.Event, 64)
	unsubscribe, err := c.store.Subscribe(ctx.Request.Context(), store.RoomPath(roomID), func(evt store.Event) {
		select {
		case events <- evt:
		default:
			log.Debug("dropping room event", "path", evt.Path)
		}
	})
	if err != nil {
		log.Error("subscribe failed", sl.Err(err))
		conn.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			unsubscribe()
			conn.Close()
			return
		case evt := <-events:
			if err := conn.WriteJSON(evt); err != nil {
				unsubscribe()
				conn.Close()
				<-done
				return
			}
		}
	}
}
