package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/movienight/internal/middleware"
	"github.com/user/movienight/internal/model"
	"github.com/user/movienight/internal/service"
	"github.com/user/movienight/internal/utils"
)

// Category 首页分类
func (h *Handler) Category(c *gin.Context) {
	category := c.Param("category")
	movies, err := h.Catalog.FetchByCategory(c.Request.Context(), category)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCategory) {
			utils.BadRequest(c, err.Error())
			return
		}
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{
		"category": category,
		"results":  withImages(movies),
	})
}

// Search 搜索；seq 为标签页内递增的请求序号，被更新请求取代的响应带 stale=true
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	mediaType := c.DefaultQuery("type", "all")

	genres, err := parseGenres(c.Query("genres"))
	if err != nil {
		utils.BadRequest(c, "无效的类型参数")
		return
	}

	var seq int64
	if raw := c.Query("seq"); raw != "" {
		if seq, err = strconv.ParseInt(raw, 10, 64); err != nil {
			utils.BadRequest(c, "无效的请求序号")
			return
		}
	}
	clientID := middleware.GetClientID(c)
	h.Sequencer.Observe(clientID, seq)

	results, err := h.Catalog.Search(c.Request.Context(), query, mediaType, genres)
	if err != nil {
		if errors.Is(err, service.ErrInvalidMediaType) {
			utils.BadRequest(c, err.Error())
			return
		}
		utils.InternalServerError(c, "")
		return
	}

	utils.Success(c, gin.H{
		"query":   query,
		"results": withImages(results),
		"seq":     seq,
		"stale":   h.Sequencer.Check(clientID, seq) != nil,
	})
}

// Trailer 预告片嵌入地址
func (h *Handler) Trailer(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		utils.BadRequest(c, "无效的 ID")
		return
	}

	url, err := h.Catalog.TrailerURL(c.Request.Context(), id, c.Param("type"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidMediaType) {
			utils.BadRequest(c, err.Error())
			return
		}
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{"url": url})
}

// Genres 类型筛选项
func (h *Handler) Genres(c *gin.Context) {
	utils.Success(c, model.Genres)
}

type movieView struct {
	model.Movie
	PosterURL   string `json:"posterUrl"`
	BackdropURL string `json:"backdropUrl"`
}

func withImages(movies []model.Movie) []movieView {
	views := make([]movieView, len(movies))
	for i, m := range movies {
		views[i] = movieView{
			Movie:       m,
			PosterURL:   service.PosterURL(m.PosterPath),
			BackdropURL: service.BackdropURL(m.BackdropPath),
		}
	}
	return views
}

// parseGenres 解析 "28,53"
func parseGenres(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	genres := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		genres = append(genres, id)
	}
	return genres, nil
}
