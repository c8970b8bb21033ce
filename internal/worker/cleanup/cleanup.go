// Package cleanup はどこからも参照されなくなったアップロード画像の
// 自動削除ジョブを提供する。プロフィール画像の差し替えなどで孤児化した
// ファイルを日次バッチで削除する。書き込み直後のファイルを誤って
// 消さないよう、更新時刻が猶予期間内のファイルは対象外にする。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hitoshi/tellme/internal/upload"
)

// ReferenceSource は現在参照されている画像パスの一覧を提供する。
type ReferenceSource interface {
	ReferencedImages(ctx context.Context) ([]string, error)
}

// DatabaseReferences は投稿とプロフィールが参照する画像パスをDBから集める。
type DatabaseReferences struct {
	db *sql.DB
}

// NewDatabaseReferences は新しいDatabaseReferencesを生成する。
func NewDatabaseReferences(db *sql.DB) *DatabaseReferences {
	return &DatabaseReferences{db: db}
}

// ReferencedImages は空でない画像参照をすべて返す。
func (r *DatabaseReferences) ReferencedImages(ctx context.Context) ([]string, error) {
	query := `
		SELECT image FROM posts WHERE image <> ''
		UNION
		SELECT profile_picture FROM users WHERE profile_picture <> ''`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("画像参照の取得に失敗: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("画像参照の読み取りに失敗: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("画像参照の走査に失敗: %w", err)
	}
	return paths, nil
}

// OrphanJob は孤児化したアップロード画像の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type OrphanJob struct {
	refs        ReferenceSource
	dir         string
	logger      *slog.Logger
	GracePeriod time.Duration // この期間内に更新されたファイルは削除しない（デフォルト: 24時間）
}

// NewOrphanJob は新しいOrphanJobを生成する。
// dirはアップロード画像の保存先ディレクトリを指定する。
func NewOrphanJob(refs ReferenceSource, dir string, logger *slog.Logger) *OrphanJob {
	return &OrphanJob{
		refs:        refs,
		dir:         dir,
		logger:      logger,
		GracePeriod: 24 * time.Hour,
	}
}

// Run は参照されていないアップロード画像を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *OrphanJob) Run(ctx context.Context) error {
	start := time.Now()

	referenced, err := j.referencedNames(ctx)
	if err != nil {
		j.logger.Error("画像参照の収集に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		j.logger.Error("アップロードディレクトリの読み取りに失敗しました",
			slog.String("dir", j.dir),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("アップロードディレクトリの読み取りに失敗: %w", err)
	}

	cutoff := time.Now().Add(-j.GracePeriod)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || referenced[entry.Name()] {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(j.dir, entry.Name())); err != nil {
			j.logger.Error("孤児画像の削除に失敗しました",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	duration := time.Since(start)
	j.logger.Info("孤児画像クリーンアップジョブが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Int("scanned_count", len(entries)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// referencedNames はDB上の参照パスをファイル名の集合へ変換する。
// 参照は /uploads/ 始まりの相対パスで保存されている。
func (j *OrphanJob) referencedNames(ctx context.Context) (map[string]bool, error) {
	paths, err := j.refs.ReferencedImages(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(paths))
	for _, p := range paths {
		names[strings.TrimPrefix(p, upload.URLPrefix+"/")] = true
	}
	return names, nil
}
