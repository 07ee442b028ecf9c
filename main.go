package main

import "github.com/dialtonelabs/guestbook/cmd"

func main() {
	cmd.Execute()
}
