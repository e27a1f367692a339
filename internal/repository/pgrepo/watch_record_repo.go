package pgrepo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

const watchRecordColumns = `id, created_at, updated_at, account_id, video_id,
watch_seconds, coins_earned, completed, last_watched_at,
policy_time_based, policy_duration_seconds, policy_coins_reward,
policy_coins_per_interval, policy_interval_seconds`

type WatchRecordRepository struct {
	db uow.DBTX
}

func NewWatchRecordRepository(db uow.DBTX) *WatchRecordRepository {
	return &WatchRecordRepository{db: db}
}

// Upsert создает или инкрементально обновляет запись прогресса просмотра.
// GREATEST в апдейте гарантирует, что устаревший отчет (меньше сохраненного прогресса)
// не откатывает watch_seconds. Снимок политики пишется только при вставке.
// Вставка/апдейт берут блокировку строки до конца транзакции, поэтому конкурентные
// отчеты по одной паре (аккаунт, видео) сериализуются.
func (w *WatchRecordRepository) Upsert(
	ctx context.Context,
	args repoargs.UpsertWatchProgress,
) (*domain.VideoWatchRecord, error) {
	row := w.db.QueryRow(ctx, `
		INSERT INTO video_watch_records
			(account_id, video_id, watch_seconds, last_watched_at,
			 policy_time_based, policy_duration_seconds, policy_coins_reward,
			 policy_coins_per_interval, policy_interval_seconds)
		VALUES ($1, $2, $3, now(), $4, $5, $6, $7, $8)
		ON CONFLICT (account_id, video_id) DO UPDATE SET
			watch_seconds   = GREATEST(video_watch_records.watch_seconds, EXCLUDED.watch_seconds),
			last_watched_at = now(),
			updated_at      = now()
		RETURNING `+watchRecordColumns,
		args.AccountID, args.VideoID, args.WatchSeconds,
		args.Policy.TimeBased, args.Policy.DurationSeconds, args.Policy.CoinsReward,
		args.Policy.CoinsPerInterval, args.Policy.IntervalSeconds)

	record, err := scanWatchRecord(row)
	if err != nil {
		return nil, convertErr(err, "upserting watch record account %d video %d", args.AccountID, args.VideoID)
	}
	return record, nil
}

// AddCoins увеличивает coins_earned на delta. Поле монотонно растет,
// уменьшение запрещено на уровне контракта репозитория.
func (w *WatchRecordRepository) AddCoins(
	ctx context.Context,
	id int64,
	delta int64,
	completed bool,
) (*domain.VideoWatchRecord, error) {
	row := w.db.QueryRow(ctx, `
		UPDATE video_watch_records
		SET coins_earned = coins_earned + $2,
			completed    = completed OR $3,
			updated_at   = now()
		WHERE id = $1
		RETURNING `+watchRecordColumns,
		id, delta, completed)

	record, err := scanWatchRecord(row)
	if err != nil {
		return nil, convertErr(err, "adding coins to watch record %d", id)
	}
	return record, nil
}

func (w *WatchRecordRepository) FindByAccountAndVideo(
	ctx context.Context,
	accountID, videoID int64,
) (*domain.VideoWatchRecord, error) {
	row := w.db.QueryRow(ctx,
		`SELECT `+watchRecordColumns+` FROM video_watch_records WHERE account_id = $1 AND video_id = $2`,
		accountID, videoID)
	record, err := scanWatchRecord(row)
	if err != nil {
		return nil, convertErr(err, "finding watch record account %d video %d", accountID, videoID)
	}
	return record, nil
}

func scanWatchRecord(row pgx.Row) (*domain.VideoWatchRecord, error) {
	var m domain.VideoWatchRecord
	err := row.Scan(
		&m.ID, &m.CreatedAt, &m.UpdatedAt, &m.AccountID, &m.VideoID,
		&m.WatchSeconds, &m.CoinsEarned, &m.Completed, &m.LastWatchedAt,
		&m.Policy.TimeBased, &m.Policy.DurationSeconds, &m.Policy.CoinsReward,
		&m.Policy.CoinsPerInterval, &m.Policy.IntervalSeconds,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
