package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orbitlabs/provision/internal/model"
)

// Document mirrors the structured provisioning payload accepted via --config.
// YAML and JSON documents are both supported (yaml.v3 parses JSON).
type Document struct {
	ProcessType string `yaml:"process_type"`
	ProcessID   string `yaml:"process_id"`
	StepOrder   int    `yaml:"step_order"`
	APIKey      string `yaml:"api_key"`
	AuthToken   string `yaml:"auth_token"`

	Database    model.DatabaseTarget  `yaml:"database"`
	Agent       model.AgentDescriptor `yaml:"agent"`
	Geolocation model.GeoReference    `yaml:"geolocation"`
}

// LoadDocument reads a structured provisioning document from disk and builds
// the request it describes. The request is not yet validated.
func LoadDocument(path string) (*model.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config document: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config document: %w", err)
	}

	return &model.Request{
		ProcessType: model.ParseProcessType(doc.ProcessType),
		ProcessID:   doc.ProcessID,
		StepOrder:   doc.StepOrder,
		APIKey:      doc.APIKey,
		AuthToken:   doc.AuthToken,
		Database:    doc.Database,
		Agent:       doc.Agent,
		Geo:         doc.Geolocation,
	}, nil
}
