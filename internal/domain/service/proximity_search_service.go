package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"golang.org/x/sync/errgroup"

	"PartyTonight-App/internal/domain/geocell"
	"PartyTonight-App/internal/domain/helper"
	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/domain/repository"
	"PartyTonight-App/internal/infrastructure/logger"
	"PartyTonight-App/internal/infrastructure/metrics"
)

// maxCoverCells 1ラウンドで列挙するセル数の上限。超える解像度は飛ばして粗くする
const maxCoverCells = 4096

// ProximitySearchOptions 近傍検索のチューニング値
type ProximitySearchOptions struct {
	MaxCellsPerRound int // 1ラウンドでスキャンするセル数の上限
	ScanBatchSize    int // 1回のストア呼び出しに渡すセル数
	ScanConcurrency  int // 同時に実行するストア呼び出し数
	MaxSearchRounds  int // 解像度を粗くする最大回数
}

// DefaultProximitySearchOptions デフォルトの検索設定
func DefaultProximitySearchOptions() ProximitySearchOptions {
	return ProximitySearchOptions{
		MaxCellsPerRound: 30,
		ScanBatchSize:    10,
		ScanConcurrency:  4,
		MaxSearchRounds:  geocell.MaxResolution,
	}
}

// ProximitySearchService ジオセルを使った近傍検索サービス
type ProximitySearchService interface {
	// Search 中心から半径内のパーティーを距離の昇順で最大maxResults件返す
	Search(ctx context.Context, center model.LatLng, maxResults int, radiusMeters float64, ageFilter time.Time) ([]model.Party, error)
}

// proximitySearchServiceImpl ProximitySearchServiceの実装
type proximitySearchServiceImpl struct {
	repo repository.PartiesRepository
	log  *logger.Logger
	opts ProximitySearchOptions
}

// NewProximitySearchService 新しいProximitySearchServiceインスタンスを作成
func NewProximitySearchService(repo repository.PartiesRepository, log *logger.Logger, opts ProximitySearchOptions) ProximitySearchService {
	def := DefaultProximitySearchOptions()
	if opts.MaxCellsPerRound <= 0 {
		opts.MaxCellsPerRound = def.MaxCellsPerRound
	}
	if opts.ScanBatchSize <= 0 || opts.ScanBatchSize > repository.MaxScanCells {
		opts.ScanBatchSize = def.ScanBatchSize
	}
	if opts.ScanConcurrency <= 0 {
		opts.ScanConcurrency = def.ScanConcurrency
	}
	if opts.MaxSearchRounds <= 0 {
		opts.MaxSearchRounds = def.MaxSearchRounds
	}
	return &proximitySearchServiceImpl{
		repo: repo,
		log:  log,
		opts: opts,
	}
}

// candidate 距離付きの検索候補
type candidate struct {
	party    model.Party
	distance float64
}

// Search 半径から決めた解像度で中心周辺のセルをスキャンし、
// 半径全体を覆えていなければ解像度を粗くして再スキャンする
func (s *proximitySearchServiceImpl) Search(ctx context.Context, center model.LatLng, maxResults int, radiusMeters float64, ageFilter time.Time) ([]model.Party, error) {
	if err := model.ValidateCoordinate(center.Lat, center.Lng); err != nil {
		return nil, err
	}
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: 検索半径は正の値で指定してください (%v)", model.ErrInvalidInput, radiusMeters)
	}
	if maxResults < 0 {
		return nil, fmt.Errorf("%w: 最大件数は0以上で指定してください (%d)", model.ErrInvalidInput, maxResults)
	}
	if maxResults == 0 {
		return []model.Party{}, nil
	}

	start := time.Now()
	origin := helper.ToPoint(center)
	box := geo.NewBoundAroundPoint(origin, radiusMeters)
	found := make(map[string]candidate)

	rounds := 0
	for res := geocell.ResolutionForRadius(radiusMeters); res >= geocell.MinResolution && rounds < s.opts.MaxSearchRounds; res-- {
		cover, ok := geocell.Cover(box, res, maxCoverCells)
		if !ok {
			continue
		}
		rounds++

		cells, coveredRadius := s.selectCells(origin, cover, radiusMeters, res == geocell.MinResolution)
		if len(cells) > 0 {
			parties, err := s.scan(ctx, cells, ageFilter)
			if err != nil {
				return nil, err
			}
			for _, p := range parties {
				d := helper.DistanceToParty(center, &p)
				if d > radiusMeters {
					continue
				}
				found[p.ID] = candidate{party: p, distance: d}
			}
		}

		if coveredRadius >= radiusMeters {
			break
		}
		if len(found) >= maxResults && kthDistance(found, maxResults) <= coveredRadius {
			break
		}
	}

	results := rankCandidates(found, maxResults)

	metrics.SearchesTotal.Inc()
	metrics.SearchRounds.Observe(float64(rounds))
	metrics.SearchResults.Observe(float64(len(results)))
	metrics.SearchDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	s.log.Debug("近傍検索完了",
		"lat", center.Lat,
		"lng", center.Lng,
		"radius_m", radiusMeters,
		"rounds", rounds,
		"results", len(results),
	)

	return results, nil
}

// selectCells 半径外のセルを除き、近い順に上限までのセルを選ぶ
// 上限で打ち切った場合は、スキャンできた半径（最も近い未スキャンセルまでの距離）を返す
func (s *proximitySearchServiceImpl) selectCells(origin orb.Point, cover []string, radiusMeters float64, final bool) ([]string, float64) {
	ranked := geocell.RankByDistance(origin, cover)
	cells := make([]string, 0, len(ranked))
	coveredRadius := radiusMeters
	for _, rc := range ranked {
		if rc.Distance > radiusMeters {
			break
		}
		if !final && len(cells) >= s.opts.MaxCellsPerRound {
			coveredRadius = rc.Distance
			break
		}
		cells = append(cells, rc.Token)
	}
	return cells, coveredRadius
}

// scan セルをバッチに分けてストアを並行スキャンする
func (s *proximitySearchServiceImpl) scan(ctx context.Context, cells []string, ageFilter time.Time) ([]model.Party, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ScanConcurrency)

	var mu sync.Mutex
	var parties []model.Party
	for i := 0; i < len(cells); i += s.opts.ScanBatchSize {
		end := i + s.opts.ScanBatchSize
		if end > len(cells) {
			end = len(cells)
		}
		batch := cells[i:end]
		g.Go(func() error {
			found, err := s.repo.FindByGeocells(gctx, batch, ageFilter)
			if err != nil {
				return fmt.Errorf("ジオセルのスキャンに失敗: %w", err)
			}
			mu.Lock()
			parties = append(parties, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parties, nil
}

// kthDistance k番目に近い候補の距離
func kthDistance(found map[string]candidate, k int) float64 {
	distances := make([]float64, 0, len(found))
	for _, c := range found {
		distances = append(distances, c.distance)
	}
	sort.Float64s(distances)
	return distances[k-1]
}

// rankCandidates 距離の昇順（同距離はID順）に並べて上限件数に切り詰める
func rankCandidates(found map[string]candidate, maxResults int) []model.Party {
	list := make([]candidate, 0, len(found))
	for _, c := range found {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].distance != list[j].distance {
			return list[i].distance < list[j].distance
		}
		return list[i].party.ID < list[j].party.ID
	})
	if len(list) > maxResults {
		list = list[:maxResults]
	}
	results := make([]model.Party, len(list))
	for i, c := range list {
		results[i] = c.party.Clone()
	}
	return results
}
