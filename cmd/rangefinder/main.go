// Command rangefinder manages the serial rangefinder driver. The start
// verb runs the driver in the foreground with the lifecycle API exposed
// over HTTP; the stop, info and regdump verbs talk to a running daemon
// (this one or the avoid daemon) over that same API.
//
// Usage:
//
//	rangefinder [flags] start|stop|info|regdump
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/proximity.guard/internal/avoid"
	"github.com/banshee-data/proximity.guard/internal/bus"
	"github.com/banshee-data/proximity.guard/internal/rangefinder"
	"github.com/banshee-data/proximity.guard/internal/version"
)

var (
	externalBus = flag.Bool("X", false, "Probe external bus candidates only")
	internalBus = flag.Bool("I", false, "Probe internal bus candidates only")
	rotation    = flag.String("R", "forward", "Mounting rotation: forward, right, left or backward")
	device      = flag.String("d", "", "Device path (overrides the bus candidate list)")
	listen      = flag.String("listen", ":8081", "Listen address for the lifecycle API (start verb)")
	addr        = flag.String("addr", "http://localhost:8081", "Daemon address (stop, info, regdump verbs)")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] start|stop|info|regdump\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
	}
	if *externalBus && *internalBus {
		log.Fatal("-X and -I are mutually exclusive")
	}

	switch verb := flag.Arg(0); verb {
	case "start":
		runStart()
	case "stop":
		callDaemon("POST", "/api/rangefinder/stop", nil)
	case "info":
		callDaemon("GET", "/api/rangefinder/info", nil)
	case "regdump":
		callDaemon("GET", "/api/rangefinder/regdump", nil)
	default:
		log.Printf("unknown verb %q", verb)
		usage()
	}
}

func selector() rangefinder.Selector {
	sel := rangefinder.Selector{Device: *device}
	switch {
	case *externalBus:
		sel.Bus = rangefinder.BusExternal
	case *internalBus:
		sel.Bus = rangefinder.BusInternal
	}
	return sel
}

func runStart() {
	log.Printf("rangefinder %s (%s) built %s", version.Version, version.GitSHA, version.BuildTime)

	mount, err := avoid.ParseMount(*rotation)
	if err != nil {
		log.Fatalf("Bad -R: %v", err)
	}

	topic := &bus.Topic[avoid.RangeReading]{}
	manager := rangefinder.NewManager(nil, topic, nil)
	if err := manager.Start(selector(), avoid.Orientation{Mount: mount}); err != nil {
		log.Fatalf("Failed to start rangefinder: %v", err)
	}
	defer manager.Stop()

	mux := http.NewServeMux()
	manager.AttachAdminRoutes(mux)

	go func() {
		log.Printf("Lifecycle API on %s", *listen)
		if err := http.ListenAndServe(*listen, mux); err != nil {
			log.Fatalf("HTTP server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("Shutting down...")
}

func callDaemon(method, path string, form url.Values) {
	u := strings.TrimRight(*addr, "/") + path

	var resp *http.Response
	var err error
	switch method {
	case "POST":
		resp, err = http.Post(u, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	default:
		resp, err = http.Get(u)
	}
	if err != nil {
		log.Fatalf("Request to %s failed: %v (is a daemon running?)", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Read response: %v", err)
	}
	fmt.Print(string(body))
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
