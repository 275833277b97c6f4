package main

import (
	"log"

	"github.com/MrSnakeDoc/asksite/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ asksite failed to start: %v", err)
	}
}
