package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/deemkeen/aprelay/app"
	"github.com/deemkeen/aprelay/config"
	"github.com/deemkeen/aprelay/util"
)

func main() {
	versionFlag := flag.Bool("v", false, "Print version information")
	configFlag := flag.String("config", "", "Path to the relay's YAML config file")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("aprelay v%s\n", util.GetVersion())
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalln(err)
	}

	util.SetupLogging(cfg.Journald)

	log.Printf("aprelay v%s", util.GetVersion())
	log.Println("Configuration:")
	log.Println(util.PrettyPrint(cfg))

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if err := application.Initialize(); err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := application.Start(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
