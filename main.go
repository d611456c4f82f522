package main

import (
	cmd "github.com/labzang/sentiment-server/cmd/sentiment"
)

func main() {
	cmd.Execute()
}
