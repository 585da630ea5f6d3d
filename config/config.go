package config

import (
	"io/ioutil"

	"github.com/alan14500171/stock/log"
	"github.com/alan14500171/stock/metrics"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	ServiceName = "stockctl"
)

// AppInfo describes the running build.
type AppInfo struct {
	Version string `json:"version"`
	Build   string `json:"build"`
}

//nolint:gochecknoglobals
var App AppInfo

// Cfg main structure of the app configuration.
type Cfg struct {
	Log        log.Config             `json:"log" yaml:"log"`
	BackOffice BackOfficeCfg          `json:"back_office" yaml:"back_office"`
	Storage    StorageCfg             `json:"storage" yaml:"storage"`
	Monitoring metrics.MonitoringConf `json:"monitoring" yaml:"monitoring"`
}

func (cfg Cfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.BackOffice, validation.Required),
		validation.Field(&cfg.Storage, validation.Required),
	)
}

func ReadConfig(path string) Cfg {
	rawConfig, err := ioutil.ReadFile(path)
	if err != nil {
		logrus.New().WithError(err).
			WithField("path", path).
			Fatal("unable to read config file")
	}

	config := new(Cfg)
	err = yaml.Unmarshal(rawConfig, config)
	if err != nil {
		logrus.New().WithError(err).
			WithField("path", path).
			Fatal("unable to unmarshal config file")
	}

	err = config.Validate()
	if err != nil {
		logrus.New().WithError(err).
			Fatal("Invalid configuration")
	}

	if config.Monitoring.Metrics || config.Monitoring.ReportFile {
		metrics.Init(metrics.CollectorOpts{Namespace: ServiceName})
		registerAllKeys()
	}

	return *config
}
