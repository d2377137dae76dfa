package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(roomController *RoomController, scoreController *ScoreController, searchController *SearchController) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	if searchController != nil {
		api.GET("/search", searchController.Search)
	}

	if roomController != nil {
		rooms := api.Group("/rooms")
		rooms.POST("/create", roomController.CreateRoom)
		rooms.GET("/:roomID", roomController.GetRoom)
		rooms.GET("/:roomID/exists", roomController.RoomExists)
		rooms.POST("/:roomID/join", roomController.JoinRoom)
		rooms.DELETE("/:roomID/users/:userID", roomController.LeaveRoom)
		rooms.GET("/:roomID/participants", roomController.ListParticipants)
		rooms.GET("/:roomID/queue", roomController.ListQueue)
		rooms.POST("/:roomID/queue", roomController.AddToQueue)
		rooms.DELETE("/:roomID/queue/:key", roomController.RemoveFromQueue)
		rooms.PUT("/:roomID/current-song", roomController.SetCurrentSong)
		rooms.PUT("/:roomID/player", roomController.SetPlayerState)
		rooms.GET("/:roomID/events", roomController.StreamEvents)

		if scoreController != nil {
			rooms.POST("/:roomID/scores", scoreController.SaveScore)
			rooms.GET("/:roomID/scores", scoreController.RoomHighScores)
			rooms.GET("/:roomID/scores/:userID", scoreController.UserHighScores)
		}
	}

	return router
}
