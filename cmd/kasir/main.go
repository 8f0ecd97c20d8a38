package main

import (
	"context"
	"os"

	"github.com/jipraks/kasirgratisan/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
