package handler

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"PartyTonight-App/internal/domain/helper"
	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/infrastructure/logger"
	"PartyTonight-App/internal/usecase"
)

const (
	contentTypeJavaScript = "application/javascript"
	contentTypeGeoJSON    = "application/geo+json"
	contentTypeXML        = "application/xml"
)

// callbackPattern JSONPのコールバック名として許可する識別子（ドット区切り可）
var callbackPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// PartyHandler パーティーの検索と評価のHTTPハンドラー
type PartyHandler struct {
	partyUseCase usecase.PartyUseCase
	log          *logger.Logger
}

// NewPartyHandler PartyHandlerの新しいインスタンスを作成
func NewPartyHandler(partyUseCase usecase.PartyUseCase, log *logger.Logger) *PartyHandler {
	return &PartyHandler{
		partyUseCase: partyUseCase,
		log:          log,
	}
}

// RegisterRoutes ルートを登録する
func (h *PartyHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/parties", h.ListParties)
	r.POST("/parties", h.RateParty)
}

// ListParties GET /parties?lat=&lng=[&callback=] - 周辺のパーティー一覧
// Acceptヘッダーに応じてJSON(P)、GeoJSON、plistのいずれかで返す
func (h *PartyHandler) ListParties(c *gin.Context) {
	lat, err := parseFloatParam("lat", c.Query("lat"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	lng, err := parseFloatParam("lng", c.Query("lng"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var callback *string
	if cb := c.Query("callback"); cb != "" {
		if !callbackPattern.MatchString(cb) {
			h.respondError(c, &ValidationError{Field: "callback", Message: "コールバック名はJavaScriptの識別子で指定してください"})
			return
		}
		callback = &cb
	}

	parties, err := h.partyUseCase.ListNearby(c.Request.Context(), lat, lng)
	if err != nil {
		h.respondError(c, err)
		return
	}

	accept := c.GetHeader("Accept")
	switch {
	case strings.Contains(accept, contentTypeJavaScript):
		// クロスドメインで読めるように application/json ではなく javascript で返す
		c.Data(http.StatusOK, contentTypeJavaScript+"; charset=utf-8", []byte(helper.ToJSON(parties, callback)))
	case strings.Contains(accept, contentTypeGeoJSON):
		body, err := helper.ToGeoJSON(parties)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Data(http.StatusOK, contentTypeGeoJSON, body)
	default:
		c.Data(http.StatusOK, contentTypeXML+"; charset=utf-8", []byte(helper.ToPlist(parties)))
	}
}

// RateParty POST /parties - パーティーの作成または評価
// 評価が反映された場合は201、評価済みの場合は202を返す
func (h *PartyHandler) RateParty(c *gin.Context) {
	req, err := parseRatingForm(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.partyUseCase.RateParty(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if !result.Applied {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{
		"id":      result.Party.ID,
		"applied": result.Applied,
		"created": result.Created,
		"rating":  result.Party.RatingClass().Label(),
		"busted":  result.Party.Busted,
	})
}

// parseRatingForm フォームの lat, lng, apt, rating, busted, id を読み取る
// bustedは大文字小文字を区別せず "true" の場合のみ真
func parseRatingForm(c *gin.Context) (*model.PartyRating, error) {
	lat, err := parseFloatParam("lat", c.PostForm("lat"))
	if err != nil {
		return nil, err
	}
	lng, err := parseFloatParam("lng", c.PostForm("lng"))
	if err != nil {
		return nil, err
	}

	ratingStr := strings.TrimSpace(c.PostForm("rating"))
	if ratingStr == "" {
		return nil, &ValidationError{Field: "rating", Message: "評価は必須です"}
	}
	rating, err := strconv.Atoi(ratingStr)
	if err != nil {
		return nil, &ValidationError{Field: "rating", Message: "評価は整数で指定してください"}
	}

	raterID := strings.TrimSpace(c.PostForm("id"))
	if raterID == "" {
		return nil, &ValidationError{Field: "id", Message: "評価者IDは必須です"}
	}

	return &model.PartyRating{
		Latitude:    lat,
		Longitude:   lng,
		Apartment:   c.PostForm("apt"),
		Busted:      strings.EqualFold(strings.TrimSpace(c.PostForm("busted")), "true"),
		RatingDelta: rating,
		RaterID:     raterID,
	}, nil
}

func parseFloatParam(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &ValidationError{Field: field, Message: "必須パラメータです"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Message: "数値で指定してください"}
	}
	return v, nil
}

// respondError エラーの種類をHTTPステータスに変換して返す
func (h *PartyHandler) respondError(c *gin.Context, err error) {
	status, code := classifyError(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("リクエスト処理に失敗", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{
		"error":   code,
		"message": err.Error(),
	})
}

func classifyError(err error) (int, string) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, "invalid_parameter"
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
