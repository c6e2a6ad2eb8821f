package app

import "strings"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は管理画面のWebサーバーを起動する。
	CommandServe Command = "serve"
	// CommandWorker は古い資格情報のクリーンアップジョブを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate は資格情報テーブルのマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はローカルの/healthを確認する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch cmd := Command(strings.ToLower(args[0])); cmd {
	case CommandWorker, CommandMigrate, CommandHealthcheck:
		return cmd
	default:
		return CommandServe
	}
}
