package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Name          string        `yaml:"name" json:"name" env:"ZENFLOW_NAME" env-default:"zenflow"`
	Bus           Bus           `yaml:"bus" json:"bus"`
	Collaborators Collaborators `yaml:"collaborators" json:"collaborators"`
	Engine        Engine        `yaml:"engine" json:"engine"`
	Metrics       Metrics       `yaml:"metrics" json:"metrics"`
}

type Bus struct {
	// Workers sets the parallel consumer count per handler subscription
	Workers   int `yaml:"workers" json:"workers" env:"BUS_WORKERS" env-default:"4"`
	QueueSize int `yaml:"queueSize" json:"queueSize" env:"BUS_QUEUE_SIZE" env-default:"256"`
}

// Collaborators names every external service the handlers depend on plus the
// service-identity credential used when no user scope applies. The addresses
// are empty for the in-process reference wiring.
type Collaborators struct {
	GraphAddr    string `yaml:"graphAddress" json:"graphAddress" env:"COLLAB_GRAPH_ADDR"`
	ContextAddr  string `yaml:"contextAddress" json:"contextAddress" env:"COLLAB_CONTEXT_ADDR"`
	AccessAddr   string `yaml:"accessAddress" json:"accessAddress" env:"COLLAB_ACCESS_ADDR"`
	RulesAddr    string `yaml:"rulesAddress" json:"rulesAddress" env:"COLLAB_RULES_ADDR"`
	ActionAddr   string `yaml:"actionAddress" json:"actionAddress" env:"COLLAB_ACTION_ADDR"`
	TimerAddr    string `yaml:"timerAddress" json:"timerAddress" env:"COLLAB_TIMER_ADDR"`
	ServiceToken string `yaml:"serviceToken" json:"serviceToken" env:"COLLAB_SERVICE_TOKEN"`
}

type Engine struct {
	// AtomicJoins switches parallel-gateway joins and default-sequence
	// fallback tracking from the optimistic last-stored check to the exact
	// append-and-snapshot protocol of the store
	AtomicJoins    bool `yaml:"atomicJoins" json:"atomicJoins" env:"ENGINE_ATOMIC_JOINS"`
	GraphCacheSize int  `yaml:"graphCacheSize" json:"graphCacheSize" env:"ENGINE_GRAPH_CACHE_SIZE" env-default:"1024"`
}

type Metrics struct {
	Addr string `yaml:"addr" json:"addr" env:"METRICS_ADDR" env-default:":9090"`
}

func (c Config) defaults() Config {
	if c.Bus.Workers <= 0 {
		c.Bus.Workers = 1
	}
	return c
}

func InitConfig() Config {
	c := Config{}
	var fileName string
	confFile := os.Getenv("CONFIG_FILE")
	if confFile == "" {
		wd, err := os.Getwd()
		if err != nil {
			panic(err)
		}
		fileName = fmt.Sprintf("%s/conf.yaml", wd)
	} else {
		fileName = confFile
	}
	var err error
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(&c)
		fmt.Printf("Configuration file %s not found. Reading config from ENV.\n", fileName)
	} else {
		err = cleanenv.ReadConfig(fileName, &c)
	}
	if err != nil {
		fmt.Printf("Error occurred while reading the configuration: %s\n", err)
		panic(err)
	}
	return c.defaults()
}
