package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options はロガー生成時の設定。
type Options struct {
	// Level はログレベル（debug, info, warn, error）。空の場合はinfo。
	Level string
	// File が指定された場合、ローテーション付きでファイルにも出力する。
	File string
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	return SetupWithOptions(w, Options{})
}

// SetupWithOptions はレベルと出力先ファイルを指定してslog.Loggerを生成する。
// Fileが指定された場合はwriterとlumberjackのローテーションファイルの両方に出力する。
func SetupWithOptions(w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if opts.File != "" {
		w = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerが指定された場合はそのwriterに出力する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	slog.SetDefault(Setup(w))
}

// ConfigureDefault は設定読み込み後にグローバルロガーを再設定する。
func ConfigureDefault(w io.Writer, opts Options) {
	slog.SetDefault(SetupWithOptions(w, opts))
}

// ParseLevel はレベル文字列をslog.Levelに変換する。未知の値はinfoとして扱う。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
