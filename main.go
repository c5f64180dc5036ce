package main

import "github.com/mouse-blink/traceview/cmd"

func main() {
	cmd.Execute()
}
