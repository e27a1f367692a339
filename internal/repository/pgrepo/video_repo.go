package pgrepo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

const videoColumns = `id, created_at, updated_at, title, duration_seconds,
use_time_based, coins_reward, coins_per_interval, interval_seconds`

type VideoRepository struct {
	db uow.DBTX
}

func NewVideoRepository(db uow.DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

func (v *VideoRepository) Create(ctx context.Context, args repoargs.VideoCreate) (*domain.Video, error) {
	row := v.db.QueryRow(ctx, `
		INSERT INTO videos
			(title, duration_seconds, use_time_based, coins_reward, coins_per_interval, interval_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+videoColumns,
		args.Title, args.DurationSeconds, args.UseTimeBased,
		args.CoinsReward, args.CoinsPerInterval, args.IntervalSeconds)

	video, err := scanVideo(row)
	if err != nil {
		return nil, convertErr(err, "creating video `%s`", args.Title)
	}
	return video, nil
}

func (v *VideoRepository) FindByID(ctx context.Context, id int64) (*domain.Video, error) {
	row := v.db.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	video, err := scanVideo(row)
	if err != nil {
		return nil, convertErr(err, "finding video by id %d", id)
	}
	return video, nil
}

func (v *VideoRepository) List(ctx context.Context, limit uint) ([]domain.Video, error) {
	safeLimit, limitErr := safeConvertUintToInt32(limit)
	if limitErr != nil {
		return nil, convertErr(limitErr, "converting limit to int32")
	}

	rows, err := v.db.Query(ctx,
		`SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC LIMIT $1`, safeLimit)
	if err != nil {
		return nil, convertErr(err, "listing videos")
	}
	defer rows.Close()

	var videos []domain.Video
	for rows.Next() {
		video, scanErr := scanVideo(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning video row")
		}
		videos = append(videos, *video)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "listing videos")
	}
	return videos, nil
}

func scanVideo(row pgx.Row) (*domain.Video, error) {
	var m domain.Video
	err := row.Scan(
		&m.ID, &m.CreatedAt, &m.UpdatedAt, &m.Title,
		&m.Policy.DurationSeconds, &m.Policy.TimeBased,
		&m.Policy.CoinsReward, &m.Policy.CoinsPerInterval, &m.Policy.IntervalSeconds,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
