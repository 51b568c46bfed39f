package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/user/movienight/internal/model"
	"github.com/user/movienight/internal/service"
	"github.com/user/movienight/internal/utils"
)

// GetPlanning 共享片单；refresh=1 时先从协作后端重新读取
func (h *Handler) GetPlanning(c *gin.Context) {
	if c.Query("refresh") == "1" {
		items, err := h.Planning.Refresh(c.Request.Context())
		if err != nil {
			log.Printf("[Planning] 读取片单失败: %v", err)
			utils.InternalServerError(c, "")
			return
		}
		utils.Success(c, items)
		return
	}
	utils.Success(c, h.Planning.Items())
}

type addPlanningRequest struct {
	Movie model.Movie `json:"movie"`
}

// AddPlanning 加入片单，添加人为当前标签页接入的身份
func (h *Handler) AddPlanning(c *gin.Context) {
	var req addPlanningRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Movie.ID == 0 {
		utils.BadRequest(c, "无效的请求数据")
		return
	}

	_, _, client := h.session(c)
	user, ok := client.CurrentUser()
	if !ok {
		utils.Conflict(c, service.ErrNotAttached.Error(), nil)
		return
	}

	items, err := h.Planning.Add(c.Request.Context(), req.Movie, user)
	if err != nil {
		h.planningError(c, err)
		return
	}
	utils.Success(c, items)
}

type voteRequest struct {
	Rating int `json:"rating" binding:"required"`
}

// VotePlanning 评分
func (h *Handler) VotePlanning(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "无效的请求数据")
		return
	}

	items, err := h.Planning.Vote(c.Request.Context(), c.Param("id"), req.Rating)
	if err != nil {
		h.planningError(c, err)
		return
	}
	utils.Success(c, items)
}

// RemovePlanning 移出片单
func (h *Handler) RemovePlanning(c *gin.Context) {
	items, err := h.Planning.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.planningError(c, err)
		return
	}
	utils.Success(c, items)
}

func (h *Handler) planningError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRating):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrItemNotFound):
		utils.NotFound(c, err.Error())
	default:
		log.Printf("[Planning] 更新片单失败: %v", err)
		utils.InternalServerError(c, "")
	}
}
