// Package main runs vesting operations against the local vesting store.
//
// The process is a command-line front end over the vesting core; identity
// is supplied by configuration and trusted as already authenticated.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	vestdcmd "github.com/vestledger/vestledger/internal/cmd/vestd"
)

func main() {
	cfg, err := vestdcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[VESTD] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := vestdcmd.Run(ctx, cfg, flag.CommandLine.Args(), os.Stdout); err != nil {
		log.Fatalf("vestd: %v", err)
	}
}
