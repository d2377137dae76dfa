package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/singstage/singstage/internal/search"
	"github.com/singstage/singstage/internal/service"
)

type SearchController struct {
	songs service.SongSearcher
}

func NewSearchController(songs service.SongSearcher) *SearchController {
	return &SearchController{songs: songs}
}

func (c *SearchController) Search(ctx *gin.Context) {
	results, err := c.songs.Search(ctx.Request.Context(), ctx.Query("q"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, search.ErrEmptyQuery) {
			status = http.StatusBadRequest
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": results})
}
