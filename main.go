package main

import "meetup-backend/cmd"

func main() {
	cmd.Run()
}
