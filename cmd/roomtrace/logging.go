package main

import (
	"github.com/cwbudde/algo-acoustic/internal/log"
	"github.com/urfave/cli"
)

var logger = log.New("roomtrace")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
