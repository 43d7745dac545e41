package main

import (
	"context"
	"log"

	"github.com/mkalvis/stockvault/internal/app"
	"github.com/mkalvis/stockvault/internal/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	a.Run(ctx)

}
