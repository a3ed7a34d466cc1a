package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandFetch はURLをフェッチしてパース結果を出力するモード。
	CommandFetch Command = "fetch"
	// CommandProbe はURLをフェッチして応答メタデータのみを出力するモード。
	// パースせずにステータス・エンコーディング・フィード種別を確認する。
	CommandProbe Command = "probe"
)

// FetchFlags はfetch/probeサブコマンドのオプション群。
type FetchFlags struct {
	URL                 string
	UseProxy            bool
	AllowPrivateAddress bool
	AllowNonWebpage     bool
}

// ParseCommand はコマンドライン引数からサブコマンドとオプションを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandFetchを返す。
func ParseCommand(args []string) (Command, FetchFlags) {
	cmd := CommandFetch
	rest := args

	if len(args) > 0 {
		switch args[0] {
		case "fetch":
			cmd = CommandFetch
			rest = args[1:]
		case "probe":
			cmd = CommandProbe
			rest = args[1:]
		}
	}

	var flags FetchFlags
	for _, arg := range rest {
		switch arg {
		case "--use-proxy":
			flags.UseProxy = true
		case "--allow-private-address":
			flags.AllowPrivateAddress = true
		case "--allow-non-webpage":
			flags.AllowNonWebpage = true
		default:
			if flags.URL == "" {
				flags.URL = arg
			}
		}
	}
	return cmd, flags
}
