package http_test

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/filter"
	httpserver "github.com/fyrsmithlabs/domainscope/internal/http"
	"github.com/fyrsmithlabs/domainscope/internal/instrument"
	"github.com/fyrsmithlabs/domainscope/internal/logging"
	"github.com/fyrsmithlabs/domainscope/internal/registry"
	"github.com/fyrsmithlabs/domainscope/internal/session"
	"github.com/fyrsmithlabs/domainscope/internal/simulate"
	"github.com/fyrsmithlabs/domainscope/internal/sink"
)

// ExampleServer wires a server over the default catalog and starts it.
func ExampleServer() {
	logger := logging.Nop()
	reg := registry.Default()

	cache, err := instrument.NewCache(reg, sink.Nop{}, logger)
	if err != nil {
		panic(err)
	}
	f := filter.Default()
	sessions, err := session.NewManager(session.Config{IdleTimeout: 30 * time.Minute}, cache, f, logger)
	if err != nil {
		panic(err)
	}

	server, err := httpserver.NewServer(httpserver.Deps{
		Sessions:  sessions,
		Filter:    f,
		Simulator: simulate.New(simulate.NewRandom(1)),
		Registry:  reg,
	}, logger, &httpserver.Config{Host: "localhost", Port: 0})
	if err != nil {
		panic(err)
	}

	go func() {
		_ = server.Start()
	}()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		panic(err)
	}

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
