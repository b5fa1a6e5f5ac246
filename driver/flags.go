package driver

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"keywordpir/usecase"
)

type Config struct {
	UseTLS     bool
	CpuProfile string
	LogLevel   string

	// For client
	ServerAddr    string
	UsePersistent bool
	Usecase       string

	// For server
	Port             int
	ConfigFile       string
	Watch            bool
	KeyCacheSize     int
	MeasureBandwidth bool

	FlagSet *flag.FlagSet
}

func (c *Config) AddPirFlags() *Config {
	c.FlagSet = flag.CommandLine
	c.FlagSet.StringVar(&c.CpuProfile, "cpuprofile", "", "write cpu profile to `file`")
	c.FlagSet.StringVar(&c.LogLevel, "logLevel", "info", "logrus level: [debug|info|warn|error]")
	c.FlagSet.StringVar(&c.ConfigFile, "config", "", "JSON service config listing the usecases to serve")
	return c
}

func (c *Config) AddClientFlags() *Config {
	c.FlagSet.StringVar(&c.ServerAddr, "serverAddr", "", "<HOSTNAME>:<PORT> of server, empty to serve -config in process")
	c.FlagSet.BoolVar(&c.UseTLS, "tls", true, "Should use TLS")
	c.FlagSet.BoolVar(&c.UsePersistent, "persistent", false, "Should use peristent connection to server")
	c.FlagSet.StringVar(&c.Usecase, "usecase", "", "usecase to query")
	return c
}

func (c *Config) AddServerFlags() *Config {
	c.FlagSet.BoolVar(&c.UseTLS, "tls", true, "Should use TLS")
	c.FlagSet.IntVar(&c.Port, "p", 12345, "Listening port")
	c.FlagSet.BoolVar(&c.Watch, "watch", true, "Reload usecases when the config file changes or on SIGHUP")
	c.FlagSet.IntVar(&c.KeyCacheSize, "keyCacheSize", DefaultKeyCacheSize, "number of client evaluation keys to cache")
	c.FlagSet.BoolVar(&c.MeasureBandwidth, "measureBandwidth", false, "count request and response bytes")
	return c
}

func (c *Config) Parse() *Config {
	if c.FlagSet.Parsed() {
		return c
	}
	if err := c.FlagSet.Parse(os.Args[1:]); err != nil {
		logrus.Fatalf("%v", err)
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.Fatalf("Bad logLevel: %s", c.LogLevel)
	}
	logrus.SetLevel(level)
	return c
}

// ServerDriver connects to ServerAddr, or builds the usecases of ConfigFile
// and serves them in process.
func (c *Config) ServerDriver() (PirServerDriver, error) {
	c.Parse()

	if c.ServerAddr != "" {
		return NewRpcProxy(c.ServerAddr, c.UseTLS, c.UsePersistent)
	}
	if c.ConfigFile == "" {
		return nil, fmt.Errorf("need either -serverAddr or -config")
	}
	store := usecase.NewStore()
	if err := NewReloader(c.ConfigFile, store).Reload(); err != nil {
		return nil, err
	}
	return NewServerDriver(store, c.KeyCacheSize, c.MeasureBandwidth), nil
}

func (c *Config) String() string {
	if c.ServerAddr != "" {
		return fmt.Sprintf("%s@%s", c.Usecase, c.ServerAddr)
	}
	return fmt.Sprintf("%s@%s", c.Usecase, c.ConfigFile)
}
