package main

import (
	"github.com/notabene00/yandex-weather/internal/cli"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cli.Execute()
}
