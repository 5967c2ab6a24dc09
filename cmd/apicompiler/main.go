package main

import (
	"os"

	"github.com/platinummonkey/apicompiler/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
