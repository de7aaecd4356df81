package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PartyTonight-App/internal/domain/geocell"
	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/domain/repository"
	"PartyTonight-App/internal/infrastructure/logger"
	"PartyTonight-App/internal/infrastructure/metrics"
)

// PartyStoreService パーティーの作成・更新と評価の重複排除を担うサービス
type PartyStoreService interface {
	// Upsert 座標に対応するパーティーを作成または更新し、評価を反映する
	Upsert(ctx context.Context, req *model.PartyRating) (*model.UpsertResult, error)
}

// partyStoreServiceImpl PartyStoreServiceの実装
type partyStoreServiceImpl struct {
	repo   repository.PartiesRepository
	locker repository.CoordinateLocker
	log    *logger.Logger
	now    func() time.Time
}

// NewPartyStoreService 新しいPartyStoreServiceインスタンスを作成
func NewPartyStoreService(repo repository.PartiesRepository, locker repository.CoordinateLocker, log *logger.Logger) PartyStoreService {
	return &partyStoreServiceImpl{
		repo:   repo,
		locker: locker,
		log:    log,
		now:    time.Now,
	}
}

// Upsert 同じ座標へのupsertはロックで直列化され、保存が唯一のコミットポイントになる
func (s *partyStoreServiceImpl) Upsert(ctx context.Context, req *model.PartyRating) (*model.UpsertResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: リクエストがありません", model.ErrInvalidInput)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := model.PartyID(req.Latitude, req.Longitude)

	waitStart := time.Now()
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		metrics.UpsertsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("座標ロックの取得に失敗: %w", err)
	}
	defer unlock()
	metrics.LockWaitMs.Observe(float64(time.Since(waitStart).Microseconds()) / 1000)

	party, err := s.repo.GetByID(ctx, id)
	created := false
	switch {
	case errors.Is(err, model.ErrNotFound):
		party = newParty(id, req.Latitude, req.Longitude, s.now())
		created = true
	case err != nil:
		metrics.UpsertsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("パーティーの取得に失敗: %w", err)
	}

	applied := applyRating(party, req)

	// 期限切れの場合は何も書き込まない
	if err := ctx.Err(); err != nil {
		metrics.UpsertsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("保存前に処理が中断されました: %w", err)
	}
	if err := s.repo.Save(ctx, party); err != nil {
		metrics.UpsertsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("パーティーの保存に失敗: %w", err)
	}

	result := "updated"
	switch {
	case created:
		result = "created"
	case !applied:
		result = "already_rated"
	}
	metrics.UpsertsTotal.WithLabelValues(result).Inc()
	s.log.Debug("パーティーを保存",
		"party_id", id,
		"result", result,
		"rating", party.Rating,
		"busted", party.Busted,
	)

	return &model.UpsertResult{
		Applied: applied,
		Created: created,
		Party:   party.Clone(),
	}, nil
}

// newParty 未登録の座標に対して新しいパーティーを作成する
func newParty(id string, lat, lng float64, now time.Time) *model.Party {
	return &model.Party{
		ID:         id,
		Latitude:   lat,
		Longitude:  lng,
		Geocells:   geocell.Encode(lat, lng),
		Apartment:  "",
		Rating:     0,
		RatersSeen: []string{},
		CreatedAt:  now.UTC(),
	}
}

// applyRating 摘発フラグ・部屋番号・評価を反映し、評価が加算されたかを返す
// 1. 摘発フラグは常に上書き
// 2. 部屋番号は未設定の場合のみ設定
// 3. 評価者ごとに一度だけ評価を加算
func applyRating(p *model.Party, req *model.PartyRating) bool {
	p.Busted = req.Busted

	if p.Apartment == "" && req.Apartment != "" {
		p.Apartment = req.Apartment
	}

	if p.HasRater(req.RaterID) {
		return false
	}
	p.RatersSeen = append(p.RatersSeen, req.RaterID)
	p.Rating += req.RatingDelta
	return true
}
