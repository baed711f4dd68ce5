package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/orderdesk/internal/app"
)

func main() {
	fx.New(app.Dashboard).Run()
}
