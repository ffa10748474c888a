package main

import (
	"log"

	"github.com/christine-M9/Hashing-passwords-API/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
