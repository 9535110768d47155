package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/harrisonrobin/taskfile/pkg/cli"
	"github.com/harrisonrobin/taskfile/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: could not load config, using defaults: %v", err)
		cfg = config.Default()
	}

	if err := cli.Execute(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
