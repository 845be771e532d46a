package main

import (
	"go.uber.org/fx"

	"github.com/brewline/brewline/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
