package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandMonitor は監視モードで起動することを示す。
	CommandMonitor Command = "monitor"
	// CommandValidate は設定ドキュメントの検証のみを行うことを示す。
	CommandValidate Command = "validate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandMonitorを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandMonitor
	}

	switch args[0] {
	case "monitor":
		return CommandMonitor
	case "validate":
		return CommandValidate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandMonitor
	}
}
