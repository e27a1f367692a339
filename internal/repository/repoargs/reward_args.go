package repoargs

import "github.com/vidmarket/coinledger/internal/domain"

// UpsertWatchProgress - аргументы инкрементального обновления прогресса просмотра.
// Policy используется только при вставке новой записи (заморозка снимка политики),
// на существующей записи снимок не перезаписывается.
type UpsertWatchProgress struct {
	AccountID    int64
	VideoID      int64
	WatchSeconds int32
	Policy       domain.RewardPolicy
}
