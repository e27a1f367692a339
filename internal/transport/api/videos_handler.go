package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
)

const defaultVideosLimit = 100

type VideosHandler struct {
	rewardService RewardServicer
}

func NewVideosHandler(rewardService RewardServicer) *VideosHandler {
	return &VideosHandler{
		rewardService: rewardService,
	}
}

type VideoResponse struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	DurationSeconds  int32     `json:"durationSeconds"`
	TimeBased        bool      `json:"timeBased"`
	CoinsReward      int64     `json:"coinsReward,omitempty"`
	CoinsPerInterval int64     `json:"coinsPerInterval,omitempty"`
	IntervalSeconds  int32     `json:"intervalSeconds,omitempty"`
	TotalEarnable    int64     `json:"totalEarnable"`
	CreatedAt        time.Time `json:"createdAt"`
}

func NewVideoResponse(v domain.Video) VideoResponse {
	return VideoResponse{
		ID:               v.ID,
		Title:            v.Title,
		DurationSeconds:  v.Policy.DurationSeconds,
		TimeBased:        v.Policy.TimeBased,
		CoinsReward:      v.Policy.CoinsReward,
		CoinsPerInterval: v.Policy.CoinsPerInterval,
		IntervalSeconds:  v.Policy.IntervalSeconds,
		TotalEarnable:    v.Policy.TotalEarnable(),
		CreatedAt:        v.CreatedAt,
	}
}

// Index GET RouteGroup + VideosRoute.
func (h *VideosHandler) Index(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	videos, err := h.rewardService.ListVideos(ctx, defaultVideosLimit)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	resp := make([]VideoResponse, 0, len(videos))
	for _, v := range videos {
		resp = append(resp, NewVideoResponse(v))
	}
	c.JSON(http.StatusOK, resp)
}

type CreateVideoParams struct {
	Title           string `binding:"required,max=255" json:"title"`
	DurationSeconds int32  `binding:"required,gt=0"    json:"durationSeconds"`
	TimeBased       bool   `json:"timeBased"`

	// Для фиксированной награды (timeBased=false).
	CoinsReward int64 `binding:"omitempty,gte=0" json:"coinsReward"`

	// Для интервального начисления (timeBased=true).
	CoinsPerInterval int64 `binding:"omitempty,gte=0" json:"coinsPerInterval"`
	IntervalSeconds  int32 `binding:"omitempty,gt=0"  json:"intervalSeconds"`
}

// Create POST RouteGroup + VideosRoute. Доступен админу и субадмину.
func (h *VideosHandler) Create(c *gin.Context) {
	var params CreateVideoParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}
	if params.TimeBased && params.IntervalSeconds <= 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
			gin.H{"error": "intervalSeconds is required for time based rewards"})
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	video, err := h.rewardService.CreateVideo(ctx, repoargs.VideoCreate{
		Title:            params.Title,
		DurationSeconds:  params.DurationSeconds,
		UseTimeBased:     params.TimeBased,
		CoinsReward:      params.CoinsReward,
		CoinsPerInterval: params.CoinsPerInterval,
		IntervalSeconds:  params.IntervalSeconds,
	})
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusCreated, NewVideoResponse(*video))
}

type ReportProgressParams struct {
	WatchedSeconds int32 `binding:"gte=0" json:"watchedSeconds"`
}

type ProgressResponse struct {
	VideoID       int64 `json:"videoId"`
	WatchSeconds  int32 `json:"watchSeconds"`
	CoinsEarned   int64 `json:"coinsEarned"`
	Completed     bool  `json:"completed"`
	CreditedCoins int64 `json:"creditedCoins"`
}

// ReportProgress POST RouteGroup + VideoProgressRoute. Отчет о накопленном времени
// просмотра. Повтор отчета безопасен: дубль и устаревший прогресс дают нулевое
// начисление.
func (h *VideosHandler) ReportProgress(c *gin.Context) {
	videoID, ok := parseIDParam(c, "id")
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	var params ReportProgressParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	accountID := getAccountIDFromContext(c)

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	result, err := h.rewardService.ReportProgress(ctx, accountID, videoID, params.WatchedSeconds)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "video not found"})
			return
		}
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, ProgressResponse{
		VideoID:       result.Record.VideoID,
		WatchSeconds:  result.Record.WatchSeconds,
		CoinsEarned:   result.Record.CoinsEarned,
		Completed:     result.Record.Completed,
		CreditedCoins: result.CreditedCoins,
	})
}
