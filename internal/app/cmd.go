package app

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションのクリーンアップワーカーを起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// NewRootCommand はroombookのルートコマンドを生成する。
// サブコマンドを指定しない場合はserveとして動作する。
// ログはwに出力する。
func NewRootCommand(w io.Writer) *cobra.Command {
	var migrateOnStart bool

	serve := func(cmd *cobra.Command, args []string) error {
		cfg, err := Init(w)
		if err != nil {
			return err
		}
		logStart(CommandServe, cfg)
		return runServe(cmd.Context(), cfg, migrateOnStart)
	}

	root := &cobra.Command{
		Use:           "roombook",
		Short:         "会議室予約サービス",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.SetOut(w)
	root.SetErr(w)

	serveCmd := &cobra.Command{
		Use:   string(CommandServe),
		Short: "APIサーバーを起動する",
		RunE:  serve,
	}
	root.PersistentFlags().BoolVar(&migrateOnStart, "migrate", false, "起動時にマイグレーションを適用する")

	workerCmd := &cobra.Command{
		Use:   string(CommandWorker),
		Short: "期限切れセッションのクリーンアップを定期実行する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			logStart(CommandWorker, cfg)
			return runWorker(cmd.Context(), cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   string(CommandMigrate),
		Short: "未適用のマイグレーションをすべて適用する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			logStart(CommandMigrate, cfg)
			return runMigrate(cfg)
		},
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	healthcheckCmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "起動中のサーバーの /health を確認する",
		RunE: func(cmd *cobra.Command, args []string) error {
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = "8080"
			}
			return runHealthcheck(cmd.Context(), port)
		},
	}

	root.AddCommand(serveCmd, workerCmd, migrateCmd, healthcheckCmd)
	return root
}
