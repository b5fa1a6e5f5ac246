package main

import (
	"flag"
	"math/rand"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"keywordpir/driver"
	"keywordpir/he"
	"keywordpir/pir"
	"keywordpir/usecase"
)

func main() {
	numRows := flag.Int("numRows", 10000, "Num DB Rows")
	rowLen := flag.Int("rowLen", 32, "Value length in bytes")
	seed := flag.Int64("seed", 17, "Seed of the generated values")
	out := flag.String("o", "db.binc", "output rows file, .csv or binc")
	name := flag.String("name", "synthetic", "usecase name written to -config")
	shards := flag.Int("shards", 1, "shard count written to -config")
	serviceConfig := flag.String("config", "", "also write a service config serving the rows")
	flag.Parse()

	rows := pir.MakeRows(rand.New(rand.NewSource(*seed)), *numRows, *rowLen)
	format := driver.FormatOf(*out)
	if err := driver.WriteRowsFile(*out, rows, format); err != nil {
		logrus.Fatalf("Failed to write %s: %v", *out, err)
	}
	logrus.WithFields(logrus.Fields{"file": *out, "rows": *numRows, "format": format}).Info("Wrote database")

	if *serviceConfig == "" {
		return
	}
	db, err := filepath.Rel(filepath.Dir(*serviceConfig), *out)
	if err != nil {
		db, _ = filepath.Abs(*out)
	}
	cfg := &driver.ServiceConfig{Usecases: []driver.UsecaseEntry{{
		Database: db,
		Usecase: usecase.Config{
			Name:       *name,
			ShardCount: *shards,
			Encryption: he.DefaultConfig(),
			Cuckoo:     pir.DefaultCuckooConfig(),
			Index:      pir.DefaultIndexConfig(),
		},
	}}}
	if err := driver.WriteServiceConfig(*serviceConfig, cfg); err != nil {
		logrus.Fatalf("Failed to write %s: %v", *serviceConfig, err)
	}
	logrus.WithField("file", *serviceConfig).Info("Wrote service config")
}
