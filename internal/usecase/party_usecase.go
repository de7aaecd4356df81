package usecase

import (
	"context"
	"fmt"
	"time"

	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/domain/service"
)

// PartyUseCase パーティー検索と評価のユースケース
type PartyUseCase interface {
	// ListNearby 指定地点の周辺で最近作成されたパーティーを近い順に返す
	ListNearby(ctx context.Context, lat, lng float64) ([]model.Party, error)
	// RateParty 指定地点のパーティーを作成または評価する
	RateParty(ctx context.Context, req *model.PartyRating) (*model.UpsertResult, error)
}

// PartySearchSettings 検索の既定値
type PartySearchSettings struct {
	RadiusMeters float64
	MaxResults   int
	MaxPartyAge  time.Duration
}

// DefaultPartySearchSettings 旧サービスと同じ既定値
func DefaultPartySearchSettings() PartySearchSettings {
	return PartySearchSettings{
		RadiusMeters: model.DefaultSearchRadiusMeters,
		MaxResults:   model.DefaultMaxResults,
		MaxPartyAge:  model.DefaultMaxPartyAge,
	}
}

// partyUseCaseImpl PartyUseCaseの実装
type partyUseCaseImpl struct {
	searchService service.ProximitySearchService
	storeService  service.PartyStoreService
	settings      PartySearchSettings
	clock         func() time.Time
}

// NewPartyUseCase 新しいPartyUseCaseインスタンスを作成
func NewPartyUseCase(
	searchService service.ProximitySearchService,
	storeService service.PartyStoreService,
	settings PartySearchSettings,
	clock func() time.Time,
) PartyUseCase {
	if clock == nil {
		clock = time.Now
	}
	return &partyUseCaseImpl{
		searchService: searchService,
		storeService:  storeService,
		settings:      settings,
		clock:         clock,
	}
}

// ListNearby MaxPartyAgeより前に作成されたパーティーは含めない
func (u *partyUseCaseImpl) ListNearby(ctx context.Context, lat, lng float64) ([]model.Party, error) {
	ageFilter := u.clock().Add(-u.settings.MaxPartyAge)
	parties, err := u.searchService.Search(ctx, model.LatLng{Lat: lat, Lng: lng}, u.settings.MaxResults, u.settings.RadiusMeters, ageFilter)
	if err != nil {
		return nil, fmt.Errorf("周辺パーティーの検索に失敗: %w", err)
	}
	return parties, nil
}

func (u *partyUseCaseImpl) RateParty(ctx context.Context, req *model.PartyRating) (*model.UpsertResult, error) {
	result, err := u.storeService.Upsert(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("パーティーの評価に失敗: %w", err)
	}
	return result, nil
}
