package main

import (
	"context"
	"os"

	"github.com/adythan1/Tax-Returns/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
