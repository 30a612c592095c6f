package main

import (
	"log"

	"github.com/MrSnakeDoc/blink/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ blink failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ blink stopped with error: %v", err)
	}
}
