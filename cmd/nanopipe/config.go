package main

import (
	"os"
	"time"

	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddress = "inproc://nanopipe"
	defaultMessage = "test message"
)

type flags struct {
	Address       string        `yaml:"address"`
	Message       string        `yaml:"message"`
	Count         int           `yaml:"count"`
	Interval      time.Duration `yaml:"interval"`
	LogLevel      string        `yaml:"log_level"`
	MetricsListen string        `yaml:"metrics_listen"`
	ConfigFile    string        `yaml:"-"`
}

func (f *flags) register(set *pflag.FlagSet) {
	set.StringVarP(&f.ConfigFile, "config", "c", "", "Use a configuration file.")
	set.StringVarP(&f.Address, "address", "a", defaultAddress, "Set the inproc address to bind and connect to.")
	set.StringVarP(&f.Message, "message", "m", defaultMessage, "Set the payload of every sent message.")
	set.IntVarP(&f.Count, "count", "n", 0, "Stop after this many messages. 0 means never.")
	set.DurationVarP(&f.Interval, "interval", "i", 0, "Set the delay between two sent messages.")
	set.StringVar(&f.LogLevel, "log-level", "info", "Set the log level.")
	set.StringVar(&f.MetricsListen, "metrics-listen", "", "Serve prometheus metrics on this address.")
}

// load fills every option not given on the command line from the configuration file.
func (f *flags) load(set *pflag.FlagSet) error {
	if f.ConfigFile == "" {
		return f.validate()
	}

	content, err := os.ReadFile(f.ConfigFile)
	if err != nil {
		return E.Cause(err, "read config file")
	}
	var fileFlags flags
	if err := yaml.Unmarshal(content, &fileFlags); err != nil {
		return E.Cause(err, "decode config file")
	}

	if fileFlags.Address != "" && !set.Changed("address") {
		f.Address = fileFlags.Address
	}
	if fileFlags.Message != "" && !set.Changed("message") {
		f.Message = fileFlags.Message
	}
	if fileFlags.Count != 0 && !set.Changed("count") {
		f.Count = fileFlags.Count
	}
	if fileFlags.Interval != 0 && !set.Changed("interval") {
		f.Interval = fileFlags.Interval
	}
	if fileFlags.LogLevel != "" && !set.Changed("log-level") {
		f.LogLevel = fileFlags.LogLevel
	}
	if fileFlags.MetricsListen != "" && !set.Changed("metrics-listen") {
		f.MetricsListen = fileFlags.MetricsListen
	}
	return f.validate()
}

func (f *flags) validate() error {
	if f.Count < 0 {
		return E.New("negative message count: ", f.Count)
	}
	if f.Interval < 0 {
		return E.New("negative interval: ", f.Interval)
	}
	if _, err := logrus.ParseLevel(f.LogLevel); err != nil {
		return E.Cause(err, "parse log level")
	}
	return nil
}
