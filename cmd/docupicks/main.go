package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/docupicks/internal/app"
)

func main() {
	// ログはstderr、refreshの結果はstdoutに出力する
	if err := app.Run(os.Stderr, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "docupicks: %v\n", err)
		os.Exit(1)
	}
}
