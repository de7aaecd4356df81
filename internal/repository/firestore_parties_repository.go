package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/domain/repository"
)

const partiesCollection = "parties"

// FirestorePartiesRepository Firestoreを使ったパーティーストア
// ドキュメントIDはパーティーID
type FirestorePartiesRepository struct {
	client *firestore.Client
}

// NewFirestorePartiesRepository 新しいFirestorePartiesRepositoryインスタンスを作成
func NewFirestorePartiesRepository(client *firestore.Client) *FirestorePartiesRepository {
	return &FirestorePartiesRepository{
		client: client,
	}
}

var _ repository.PartiesRepository = (*FirestorePartiesRepository)(nil)

// GetByID IDでパーティーのドキュメントを取得する
func (r *FirestorePartiesRepository) GetByID(ctx context.Context, id string) (*model.Party, error) {
	doc, err := r.client.Collection(partiesCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("パーティー %s: %w", id, model.ErrNotFound)
		}
		return nil, firestoreError(ctx, "パーティーの取得に失敗しました", err)
	}

	var p model.Party
	if err := doc.DataTo(&p); err != nil {
		return nil, fmt.Errorf("データの変換に失敗しました: %w", err)
	}
	normalizeFirestoreParty(&p, doc.Ref.ID)
	return &p, nil
}

// Save 新規作成を試み、既に存在する場合は可変フィールドのみマージする
func (r *FirestorePartiesRepository) Save(ctx context.Context, party *model.Party) error {
	ref := r.client.Collection(partiesCollection).Doc(party.ID)

	snapshot := party.Clone()
	snapshot.CreatedAt = snapshot.CreatedAt.UTC()
	if snapshot.RatersSeen == nil {
		snapshot.RatersSeen = []string{}
	}

	_, err := ref.Create(ctx, snapshot)
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.AlreadyExists {
		return firestoreError(ctx, "パーティーの作成に失敗しました", err)
	}

	_, err = ref.Set(ctx, map[string]interface{}{
		"apartment":   snapshot.Apartment,
		"rating":      snapshot.Rating,
		"raters_seen": snapshot.RatersSeen,
		"busted":      snapshot.Busted,
	}, firestore.MergeAll)
	if err != nil {
		return firestoreError(ctx, "パーティーの更新に失敗しました", err)
	}
	return nil
}

// FindByGeocells array-contains-any は最大30要素までなので MaxScanCells を超える指定は拒否する
func (r *FirestorePartiesRepository) FindByGeocells(ctx context.Context, cells []string, createdAfter time.Time) ([]model.Party, error) {
	if len(cells) > repository.MaxScanCells {
		return nil, fmt.Errorf("%w: 一度にスキャンできるセルは%d個までです (%d)", model.ErrInvalidInput, repository.MaxScanCells, len(cells))
	}
	if len(cells) == 0 {
		return []model.Party{}, nil
	}

	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	docs, err := r.client.Collection(partiesCollection).
		Where("geocells", "array-contains-any", values).
		Where("created_at", ">", createdAfter.UTC()).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, firestoreError(ctx, "ジオセルによるパーティー検索に失敗しました", err)
	}

	parties := make([]model.Party, 0, len(docs))
	for _, doc := range docs {
		var p model.Party
		if err := doc.DataTo(&p); err != nil {
			return nil, fmt.Errorf("データの変換に失敗しました (%s): %w", doc.Ref.ID, err)
		}
		normalizeFirestoreParty(&p, doc.Ref.ID)
		parties = append(parties, p)
	}
	sort.Slice(parties, func(i, j int) bool { return parties[i].ID < parties[j].ID })
	return parties, nil
}

func normalizeFirestoreParty(p *model.Party, docID string) {
	if p.ID == "" {
		p.ID = docID
	}
	if p.RatersSeen == nil {
		p.RatersSeen = []string{}
	}
	p.CreatedAt = p.CreatedAt.UTC()
}

func firestoreError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal, codes.Unknown:
		return fmt.Errorf("%s: %w: %v", op, model.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
