package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はニュースプロキシのAPIサーバーとして起動することを示す。
	CommandServe Command = "serve"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandNews はプロキシからニュースを取得して端末に表示することを示す。
	CommandNews Command = "news"
	// CommandWatchlist はウォッチリストを操作することを示す。
	CommandWatchlist Command = "watchlist"
	// CommandQuotes はウォッチリストの銘柄のクォートを順に取得することを示す。
	CommandQuotes Command = "quotes"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "healthcheck":
		return CommandHealthcheck
	case "news":
		return CommandNews
	case "watchlist":
		return CommandWatchlist
	case "quotes":
		return CommandQuotes
	default:
		return CommandServe
	}
}
