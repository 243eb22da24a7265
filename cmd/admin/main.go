package main

import (
	"context"
	"fmt"
	"os"

	"github.com/psicopedagogiando/tienda/internal/admin"
	"github.com/psicopedagogiando/tienda/internal/server"
	"github.com/psicopedagogiando/tienda/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()

	cmd := admin.NewRootCmd(admin.PostgresOpener(cfg, server.OpenDB))
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
