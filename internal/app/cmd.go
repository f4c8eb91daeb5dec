package app

// Command はアプリケーションの起動モード（サブコマンド）。
type Command string

const (
	// CommandServe はAPIサーバー。既定のモード。
	CommandServe Command = "serve"
	// CommandWorker は定期更新と期限切れキャッシュの削除を行う常駐ワーカー。
	CommandWorker Command = "worker"
	// CommandRefresh は当日のキャッシュを1回だけ用意し、レスポンスを標準出力に書き出す。
	CommandRefresh Command = "refresh"
	// CommandMigrate はデータベースマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistrolessイメージのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandRefresh):     CommandRefresh,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを決める。
// 引数が空または未知のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := knownCommands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}

// unknownCommand は先頭引数が未知のサブコマンドであればそれを返す。
func unknownCommand(args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	_, ok := knownCommands[args[0]]
	return args[0], !ok
}
