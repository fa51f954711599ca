package main

import (
	"log"

	"github.com/MrSnakeDoc/charge/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ charge failed: %v", err)
	}
}
