package main

import (
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/charmbracelet/log"
	_ "github.com/vela-games/lfsserver/functions/cloudfunction"
)

func main() {
	port := "8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}

	if err := funcframework.Start(port); err != nil {
		log.Fatal("error starting function", "err", err)
	}
}
