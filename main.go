package main

import "companion-dispatch.com/companion-dispatch/cmd"

func main() {
	cmd.Execute()
}
