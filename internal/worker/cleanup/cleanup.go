// Package cleanup は古い資格情報の自動削除ジョブを提供する。
// PostgreSQLバックエンドでは閉じられたブラウザのトークンが残り続けるため、
// 保持期間（デフォルト30日）を超えて更新されていない行を定期的に削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sweeper は基準時刻より古い資格情報を削除する。
type Sweeper interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder は削除件数の記録先。
type Recorder interface {
	RecordCredentialsSwept(count int64)
}

// CleanupJob は保持期間を超過した資格情報の削除ジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	sweeper       Sweeper
	logger        *slog.Logger
	recorder      Recorder
	now           func() time.Time
	RetentionDays int // 資格情報の保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(sweeper Sweeper, logger *slog.Logger, recorder Recorder) *CleanupJob {
	return &CleanupJob{
		sweeper:       sweeper,
		logger:        logger,
		recorder:      recorder,
		now:           time.Now,
		RetentionDays: 30,
	}
}

// Run は最終更新がRetentionDays日より前の資格情報を削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.sweeper.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("credential cleanup failed",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("credential cleanup failed: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordCredentialsSwept(deletedCount)
	}

	j.logger.Info("credential cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、その後interval毎にRunを実行する。ctxが終了するまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil && ctx.Err() != nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
