package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"keywordpir/sympir"
)

func main() {
	out := flag.String("o", "", "output key file, stdout if empty")
	configType := flag.String("type", string(sympir.DefaultConfigType), "symmetric PIR config type")
	flag.Parse()

	key, err := sympir.GenerateKey(sympir.ConfigType(*configType))
	if err != nil {
		logrus.Fatalf("Failed to generate key: %v", err)
	}
	if *out == "" {
		fmt.Println(key)
		return
	}
	if err := os.WriteFile(*out, []byte(key+"\n"), 0600); err != nil {
		logrus.Fatalf("Failed to write %s: %v", *out, err)
	}
	logrus.WithFields(logrus.Fields{"file": *out, "type": *configType}).Info("Wrote database encryption key")
}
