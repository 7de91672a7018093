// Package cleanup は孤立コメントの定期削除ジョブを提供する。
// postsとcommentsの間には外部キー制約がないため、投稿を削除すると
// コメントが残る。このジョブが投稿の存在しないコメントをまとめて削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Recorder は削除件数を記録するメトリクスのインターフェース。
type Recorder interface {
	RecordOrphanedCommentsDeleted(count int64)
}

const deleteOrphanedCommentsQuery = `DELETE FROM comments c
WHERE NOT EXISTS (SELECT 1 FROM posts p WHERE p.id = c.post_id)`

// CleanupJob は孤立コメントの削除ジョブ。冪等で、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	db      Executor
	logger  *slog.Logger
	metrics Recorder
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilを許容する。
func NewCleanupJob(db Executor, logger *slog.Logger, recorder Recorder) *CleanupJob {
	return &CleanupJob{
		db:      db,
		logger:  logger,
		metrics: recorder,
	}
}

// Run は投稿が存在しないコメントを削除し、削除件数を返す。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, deleteOrphanedCommentsQuery)
	if err != nil {
		j.logger.Error("孤立コメントの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("孤立コメントの削除に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordOrphanedCommentsDeleted(deletedCount)
	}

	j.logger.Info("孤立コメントのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deletedCount, nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。実行失敗はログに記録して次回に持ち越す。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	// エラーはRun内でログ済み
	_, _ = j.Run(ctx)
}
