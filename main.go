/*
This is an example application that uses the engine package
to stream a bundle of demo assets.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/lodestone-engine/lodestone/testbed"
)

func main() {
	game, err := testbed.NewDemo()
	if err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		<-sigCh
		_ = game.Engine.Shutdown()
	}()

	go func() {
		game.Play()
		_ = game.Engine.Shutdown()
	}()

	if err := game.Engine.Run(); err != nil {
		panic(err)
	}
}
