// Command opsctl is the operator console. With arguments it runs one command,
// otherwise it reads commands from stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"fieldops/internal/app"
	"fieldops/internal/config"
	"fieldops/internal/handler"
	"fieldops/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "opsctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.New("opsctl")
	ctx := context.Background()

	backend, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	svc := app.NewServices(cfg, backend.Store, nil, nil, log)
	if err := svc.Bootstrap(ctx, cfg); err != nil {
		return err
	}
	admin, err := backend.Store.GetUserByUsername(ctx, cfg.AdminUsername)
	if err != nil {
		return err
	}
	h := handler.New(svc, admin.Actor(), os.Stdout)

	if len(os.Args) > 1 {
		return h.Execute(ctx, os.Args[1], os.Args[2:])
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		err = h.Execute(ctx, parts[0], parts[1:])
		if errors.Is(err, handler.ErrExit) {
			return nil
		}
		if err != nil {
			fmt.Println(err)
		}
	}
}
