package main

import (
	"flag"
	"io/ioutil"
	"log"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/lancer-kit/noble"
	"github.com/lancer-kit/uwe/v2/presets/api"
	"gopkg.in/yaml.v2"

	"github.com/alan14500171/stock/metrics"
)

// BackOfficeCfg configures the stub back-office server used to exercise the
// stockctl client without the production deployment.
type BackOfficeCfg struct {
	API api.Config `json:"api" yaml:"api"`
	// LegacyGrants switches the user-info payload to the older wire shape:
	// bare identifier lists instead of {code}/{name} records.
	LegacyGrants bool                   `json:"legacy_grants" yaml:"legacy_grants"`
	Users        []UserCfg              `json:"users" yaml:"users"`
	Monitoring   metrics.MonitoringConf `json:"monitoring" yaml:"monitoring"`
}

func (cfg BackOfficeCfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.API, validation.Required),
		validation.Field(&cfg.Users, validation.Required),
	)
}

type UserCfg struct {
	Username    string       `json:"username" yaml:"username"`
	Password    noble.Secret `json:"password" yaml:"password"`
	DisplayName string       `json:"display_name" yaml:"display_name"`
	Permissions []string     `json:"permissions" yaml:"permissions"`
	Roles       []string     `json:"roles" yaml:"roles"`
}

func (cfg UserCfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Username, validation.Required),
		validation.Field(&cfg.Password, validation.Required, noble.RequiredSecret),
	)
}

func getConfig() BackOfficeCfg {
	path := flag.String("conf", "backoffice.yaml", "path to config file")
	flag.Parse()

	yamlFile, err := ioutil.ReadFile(*path)
	if err != nil {
		log.Fatalf("can`t read confg file: %s", err)
	}

	var cfg BackOfficeCfg
	err = yaml.Unmarshal(yamlFile, &cfg)
	if err != nil {
		log.Fatalf("can`t unmarshal the config file: %s", err)
	}

	if err = cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}
	return cfg
}
