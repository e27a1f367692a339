package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

// RewardService начисляет монеты за просмотр видео по отчетам о накопленном времени.
// Клиент шлет отчеты периодически и может повторять или присылать их не по порядку -
// сервис терпит дубли и устаревший прогресс, начисляя только инкрементальную дельту.
type RewardService struct {
	uow       uow.UOW
	videoRepo VideoRepository
	watchRepo WatchRecordRepository
	ledger    *LedgerService
}

func NewRewardService(u uow.UOW, ledger *LedgerService) (*RewardService, error) {
	videoRepo, videoRepoErr := uow.GetRepositoryAs[VideoRepository](
		u, uow.RepositoryName(repoargs.VideoRepoName))
	if videoRepoErr != nil {
		return nil, videoRepoErr
	}
	watchRepo, watchRepoErr := uow.GetRepositoryAs[WatchRecordRepository](
		u, uow.RepositoryName(repoargs.WatchRecordRepoName))
	if watchRepoErr != nil {
		return nil, watchRepoErr
	}
	return &RewardService{
		uow:       u,
		videoRepo: videoRepo,
		watchRepo: watchRepo,
		ledger:    ledger,
	}, nil
}

type ProgressResult struct {
	Record        *domain.VideoWatchRecord
	CreditedCoins int64
}

// ReportProgress принимает отчет о накопленном времени просмотра и начисляет
// заработанные с прошлого отчета монеты.
//
// Инварианты:
//   - монотонность: сохраненный прогресс и coins_earned не убывают, устаревший отчет
//     ([60, 30]) дает нулевую дельту, а не откат;
//   - идемпотентность: повторный отчет с тем же временем начисляет ноль
//     (дельта = earnable - уже начисленное), двойного начисления интервала не бывает;
//   - снимок политики замораживается при первом отчете, правки видео на уже
//     начатые просмотры не влияют.
//
// Все шаги выполняются в одной транзакции БД; апсерт записи прогресса держит
// блокировку строки, так что конкурентные отчеты по одной паре сериализуются.
func (s *RewardService) ReportProgress(
	ctx context.Context,
	accountID, videoID int64,
	watchedSeconds int32,
) (*ProgressResult, error) {
	if watchedSeconds < 0 {
		return nil, fmt.Errorf("reporting progress: negative watch time %d", watchedSeconds)
	}

	video, videoErr := s.videoRepo.FindByID(ctx, videoID)
	if videoErr != nil {
		return nil, fmt.Errorf("reporting progress: %w", videoErr)
	}

	var result ProgressResult
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		watchRepo, watchRepoErr := uow.GetAs[WatchRecordRepository](
			tx, uow.RepositoryName(repoargs.WatchRecordRepoName))
		if watchRepoErr != nil {
			return watchRepoErr //nolint:wrapcheck
		}

		record, upsertErr := watchRepo.Upsert(c, repoargs.UpsertWatchProgress{
			AccountID:    accountID,
			VideoID:      videoID,
			WatchSeconds: watchedSeconds,
			Policy:       video.Policy,
		})
		if upsertErr != nil {
			return upsertErr //nolint:wrapcheck
		}

		// earnable считается от сохраненного (максимального) прогресса по замороженному
		// снимку политики. Дельта <= 0 - это дубль или устаревший отчет, тихий no-op.
		earnable := record.Policy.Earnable(record.WatchSeconds)
		delta := earnable - record.CoinsEarned
		if delta <= 0 {
			result.Record = record
			return nil
		}

		completed := record.WatchSeconds >= record.Policy.DurationSeconds

		if _, ledgerErr := s.ledger.ApplyDeltaTX(c, tx, ApplyDeltaArgs{
			AccountID:    accountID,
			Amount:       delta,
			Kind:         domain.TransactionEarn,
			Description:  fmt.Sprintf("reward for watching video `%s`", video.Title),
			VideoID:      &videoID,
			WatchSeconds: &record.WatchSeconds,
		}); ledgerErr != nil {
			return ledgerErr //nolint:wrapcheck
		}

		credited, addErr := watchRepo.AddCoins(c, record.ID, delta, completed)
		if addErr != nil {
			return addErr //nolint:wrapcheck
		}

		result.Record = credited
		result.CreditedCoins = delta
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("reporting progress: %w", txErr)
	}
	return &result, nil
}

// GetProgress возвращает прогресс просмотра или запись с нулями, если юзер
// видео еще не смотрел.
func (s *RewardService) GetProgress(
	ctx context.Context,
	accountID, videoID int64,
) (*domain.VideoWatchRecord, error) {
	record, err := s.watchRepo.FindByAccountAndVideo(ctx, accountID, videoID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return &domain.VideoWatchRecord{AccountID: accountID, VideoID: videoID}, nil
		}
		return nil, err //nolint:wrapcheck
	}
	return record, nil
}

func (s *RewardService) CreateVideo(ctx context.Context, args repoargs.VideoCreate) (*domain.Video, error) {
	video, err := s.videoRepo.Create(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("creating video: %w", err)
	}
	return video, nil
}

func (s *RewardService) ListVideos(ctx context.Context, limit uint) ([]domain.Video, error) {
	videos, err := s.videoRepo.List(ctx, limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return videos, nil
}
