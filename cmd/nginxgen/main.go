package main

import (
	"os"

	"github.com/nuetzliches/nginxgen/internal/app"
)

func main() {
	os.Exit(app.Main(os.Args))
}
