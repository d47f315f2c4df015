// Package main starts the nanoprobe interactive device probe.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	invhttp "github.com/micromdm/nanoprobe/inventory/http"
	"github.com/micromdm/nanoprobe/inventory/storage"
	"github.com/micromdm/nanoprobe/log/logkeys"
	"github.com/micromdm/nanoprobe/mode"
	"github.com/micromdm/nanoprobe/runner"
	"github.com/micromdm/nanoprobe/scan"
	"github.com/micromdm/nanoprobe/utils/uuid"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/envflag"
	nanohttp "github.com/micromdm/nanolib/http"
	"github.com/micromdm/nanolib/http/trace"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/stdlogfmt"
)

// overridden by -ldflags -X
var version = "unknown"

func main() {
	var (
		flDebug    = flag.Bool("debug", false, "log debug messages")
		flVersion  = flag.Bool("version", false, "print version and exit")
		flADB      = flag.String("adb", runner.BridgeName, "path to the adb debug bridge client")
		flFastboot = flag.String("fastboot", runner.BootloaderClientName, "path to the fastboot bootloader client")
		flSerial   = flag.String("serial", "", "serial of the device to target when several are attached")
		flTimeout  = flag.Duration("timeout", runner.DefaultTimeout, "timeout for each device command")
		flOut      = flag.String("out", ".", "directory for scan reports and unlock token records")
		flStorage  = flag.String("storage", "inmem", "name of scan history storage backend")
		flDSN      = flag.String("storage-dsn", "", "data source name (e.g. path)")
		flListen   = flag.String("listen", "", "HTTP listen address for the read-only scan history API (disabled if empty)")
		flBackend  = flag.String("backend", "", "backend to start with: adb or local (prompts if empty)")
	)
	envflag.Parse("NANOPROBE_", []string{"version"})

	if *flVersion {
		fmt.Println(version)
		return
	}

	logger := stdlogfmt.New(stdlogfmt.WithDebugFlag(*flDebug))

	store, err := parseStorage(*flStorage, *flDSN)
	if err != nil {
		logger.Info(logkeys.Message, "parse storage", logkeys.Error, err)
		os.Exit(1)
	}

	if *flListen != "" {
		go serve(*flListen, store, logger)
	}

	// interrupting a blocking prompt or device command ends the program
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nInterrupted.")
		os.Exit(130)
	}()

	run := runner.New(
		runner.WithLogger(logger.With("service", "runner")),
		runner.WithBridge(*flADB),
		runner.WithBootloaderClient(*flFastboot),
		runner.WithSerial(*flSerial),
		runner.WithTimeout(*flTimeout),
	)

	console := NewConsole(os.Stdin, os.Stdout)

	detector := mode.New(
		run,
		mode.WithLogger(logger.With("service", "mode")),
		mode.WithChooser(console),
		mode.WithAddresser(console),
		mode.WithSerial(*flSerial),
	)

	scanner := scan.New(
		run,
		scan.WithLogger(logger.With("service", "scan")),
		scan.WithStorage(store),
	)

	a := &app{
		console:  console,
		detector: detector,
		runner:   run,
		outDir:   *flOut,
		logger:   logger.With("service", "menu"),
		now:      time.Now,
	}

	ctx := context.Background()

	backend, err := runner.ParseBackend(*flBackend)
	if *flBackend == "" {
		console.Title("nanoprobe " + version)
		backend, err = a.selectBackend(ctx)
	}
	if errors.Is(err, io.EOF) {
		return
	} else if err != nil {
		logger.Info(logkeys.Message, "backend", logkeys.Error, err)
		os.Exit(1)
	}
	a.session = scan.NewSession(scanner, backend)

	if err = a.Run(ctx); err != nil && !errors.Is(err, io.EOF) {
		logger.Info(logkeys.Message, "menu", logkeys.Error, err)
		os.Exit(1)
	}
}

// serve runs the read-only scan history API.
func serve(listen string, store storage.ReadStorage, logger log.Logger) {
	mux := flow.New()
	mux.Handle("/version", nanohttp.NewJSONVersionHandler(version))
	invhttp.HandleAPIv1("/v1", mux, logger, store)

	ids := uuid.NewUUID()
	newTraceID := func(*http.Request) string { return ids.ID() }

	logger.Info(logkeys.Message, "starting server", "listen", listen)
	err := http.ListenAndServe(listen, trace.NewTraceLoggingHandler(mux, logger.With("handler", "log"), newTraceID))
	logs := []interface{}{logkeys.Message, "server shutdown"}
	if err != nil {
		logs = append(logs, logkeys.Error, err)
	}
	logger.Info(logs...)
}
