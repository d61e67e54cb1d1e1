package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Tapu45/CurioAi-sub001/internal/app"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/shutdown"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	if err := a.Run(ctx); err != nil {
		fmt.Printf("server exited: %v\n", err)
		os.Exit(1)
	}
}
