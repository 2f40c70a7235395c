package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"vkrelay/internal/domain"
	"vkrelay/internal/relaytest"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	hostID := flag.String("host", "dev-host", "host id to generate a pairing for")
	bundleOut := flag.String("bundle", "", "write the pairing bundle to this file instead of stdout")
	flag.Parse()

	relay := relaytest.New()
	relay.SetExternalURL("http://" + *addr)

	host, err := relay.GenerateHost(domain.HostID(*hostID))
	if err != nil {
		log.Fatal(err)
	}
	bundle, err := json.MarshalIndent(host, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	if *bundleOut != "" {
		if err := os.WriteFile(*bundleOut, bundle, 0o600); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("pairing bundle written to %s\n", *bundleOut)
	} else {
		fmt.Println(string(bundle))
	}

	log.Printf("relay stub listening on %s (host %s)", *addr, *hostID)
	log.Fatal(http.ListenAndServe(*addr, relay.Handler()))
}
