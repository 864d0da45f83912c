package main

import (
	"github.com/orbitlabs/provision/internal/config"
	"github.com/orbitlabs/provision/internal/model"
)

// Options is the command-line surface. The struct tags are interpreted by
// github.com/jessevdk/go-flags. A structured document (--config) carries the
// full request including process type and process ID; discrete flags describe
// a standalone agent-creation run.
type Options struct {
	Config string `long:"config" description:"Structured provisioning document (YAML or JSON)"`

	APIKey string `long:"api-key" description:"API key for authentication"`

	DBConnectionURI string `long:"db-connection-uri" description:"Database connection URI"`
	DBHost          string `long:"db-host" description:"Database host"`
	DBPort          int    `long:"db-port" default:"5432" description:"Database port"`
	DBName          string `long:"db-name" description:"Database name"`
	DBUser          string `long:"db-user" description:"Database username"`
	DBPassword      string `long:"db-password" description:"Database password"`

	FactTable      string `long:"fact-table" description:"Fact table name for geolocation"`
	ProvinceCol    string `long:"province-col" description:"Province column name in the fact table"`
	CityCol        string `long:"city-col" description:"City column name in the fact table"`
	DistrictCol    string `long:"district-col" description:"District column name in the fact table"`
	SubdistrictCol string `long:"subdistrict-col" description:"Sub-district column name in the fact table"`
	Province       string `long:"province" description:"Static province value"`
	City           string `long:"city" description:"Static city value"`
	District       string `long:"district" description:"Static district value"`
	Subdistrict    string `long:"subdistrict" description:"Static sub-district value"`

	AgentName        string `long:"agent-name" description:"Name of the agent to register"`
	AgentDescription string `long:"agent-description" description:"Description of the agent to register"`
}

// buildRequest turns the parsed options into the provisioning request. The
// request still has to be validated. Discrete flags describe a standalone
// create-agent run; a structured document declares its own process type.
func buildRequest(opts Options) (*model.Request, error) {
	if opts.Config != "" {
		return config.LoadDocument(opts.Config)
	}

	return &model.Request{
		ProcessType: model.ProcessCreateAgent,
		APIKey:      opts.APIKey,
		Database: model.DatabaseTarget{
			ConnectionURI: opts.DBConnectionURI,
			Host:          opts.DBHost,
			Port:          opts.DBPort,
			Name:          opts.DBName,
			User:          opts.DBUser,
			Password:      opts.DBPassword,
		},
		Agent: model.AgentDescriptor{
			Name:        opts.AgentName,
			Description: opts.AgentDescription,
		},
		Geo: model.GeoReference{
			FactTable:         opts.FactTable,
			ProvinceColumn:    opts.ProvinceCol,
			CityColumn:        opts.CityCol,
			DistrictColumn:    opts.DistrictCol,
			SubdistrictColumn: opts.SubdistrictCol,
			Province:          opts.Province,
			City:              opts.City,
			District:          opts.District,
			Subdistrict:       opts.Subdistrict,
		},
	}, nil
}
