package main

import "artchat-backend/internal/app"

func main() {
	app.Run()
}
