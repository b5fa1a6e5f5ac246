package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"keywordpir/driver"
	"keywordpir/pir"
)

func main() {
	config := new(driver.Config).AddPirFlags().AddClientFlags()
	numDummy := config.FlagSet.Int("dummy", 0, "Number of dummy queries to send after the lookups")
	list := config.FlagSet.Bool("list", false, "List the usecases published by the server")
	config.Parse()

	server, err := config.ServerDriver()
	if err != nil {
		logrus.Fatalf("Failed to connect: %v", err)
	}

	if *list {
		var resp driver.UsecaseList
		if err := server.Usecases(0, &resp); err != nil {
			logrus.Fatalf("Failed to list usecases: %v", err)
		}
		for _, u := range resp.Usecases {
			fmt.Printf("%s\tversion=%d retained=%v rows=%d shards=%d built=%s\n",
				u.Name, u.Version, u.Versions, u.Rows, u.Shards, u.BuiltAt.Format(time.RFC3339))
		}
		return
	}
	if config.Usecase == "" {
		logrus.Fatal("Missing -usecase")
	}

	start := time.Now()
	client, err := driver.NewClient(server, config.Usecase)
	if err != nil {
		logrus.Fatalf("Failed to initialize client: %v", err)
	}
	cfg := client.Config()
	fmt.Printf("Usecase %s version %d, %s, index %s [%v]\n",
		cfg.Usecase, cfg.Version, cfg.Encryption, cfg.Index, time.Since(start))

	found := color.New(color.FgGreen, color.Bold)
	missing := color.New(color.FgYellow)
	failed := color.New(color.FgRed)
	exit := 0
	for _, keyword := range config.FlagSet.Args() {
		start := time.Now()
		value, ok, err := client.Lookup([]byte(keyword))
		elapsed := time.Since(start)
		switch {
		case err != nil:
			failed.Printf("%s: %v\n", keyword, err)
			exit = 1
		case ok:
			found.Printf("%s", keyword)
			fmt.Printf(" = %q [%v]\n", value, elapsed)
		default:
			missing.Printf("%s", keyword)
			fmt.Printf(" not found [%v]\n", elapsed)
		}
	}

	rnd := pir.CryptoRand()
	for i := 0; i < *numDummy; i++ {
		if err := client.DummyQuery(rnd); err != nil {
			failed.Printf("dummy query %d: %v\n", i, err)
			exit = 1
		}
	}
	os.Exit(exit)
}
