package model

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	validate.RegisterStructValidation(requestStructLevel, Request{})
}

// ProcessType identifies which provisioning flow a request belongs to.
// It is decided once, at construction, from the declared process type string.
type ProcessType int

const (
	// ProcessUnspecified is an absent or unrecognized process type. It
	// requires an API key like initial provisioning but does not run the
	// infrastructure deployment stage.
	ProcessUnspecified ProcessType = iota
	ProcessInitialProvisioning
	ProcessCreateAgent
)

// ParseProcessType maps a declared process type string onto the closed enum.
// Unknown values map to ProcessUnspecified.
func ParseProcessType(s string) ProcessType {
	switch s {
	case "initial_provisioning":
		return ProcessInitialProvisioning
	case "create_agent":
		return ProcessCreateAgent
	default:
		return ProcessUnspecified
	}
}

func (t ProcessType) String() string {
	switch t {
	case ProcessInitialProvisioning:
		return "initial_provisioning"
	case ProcessCreateAgent:
		return "create_agent"
	default:
		return "unspecified"
	}
}

func (t ProcessType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// ConfigError reports invalid or missing provisioning input. It is always
// raised before any external call is made.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// DatabaseTarget describes the customer database either as a ready-made
// connection URI or as discrete connection fields. Exactly one form must be
// given.
type DatabaseTarget struct {
	ConnectionURI string `json:"connection_uri,omitempty" yaml:"connection_uri"`
	Host          string `json:"host,omitempty" yaml:"host"`
	Port          int    `json:"port,omitempty" yaml:"port" validate:"omitempty,min=1,max=65535"`
	Name          string `json:"name,omitempty" yaml:"name"`
	User          string `json:"user,omitempty" yaml:"user"`
	Password      string `json:"password,omitempty" yaml:"password"`
}

// DefaultDatabasePort is used when the discrete form omits the port.
const DefaultDatabasePort = 5432

func (t DatabaseTarget) structured() bool {
	return t.Host != "" || t.Name != "" || t.User != "" || t.Password != ""
}

// Resolve produces the connection URI for the target. The password of the
// discrete form is percent-encoded before being embedded.
func (t DatabaseTarget) Resolve() (string, error) {
	if t.ConnectionURI != "" {
		if t.structured() {
			return "", configErrorf("database target: connection URI and discrete fields are mutually exclusive")
		}
		return t.ConnectionURI, nil
	}
	if !t.structured() {
		return "", configErrorf("database target: either a connection URI or host, name, user and password are required")
	}
	if t.Host == "" || t.Name == "" || t.User == "" || t.Password == "" {
		return "", configErrorf("database target: host, name, user and password must all be set when no connection URI is given")
	}
	port := t.Port
	if port == 0 {
		port = DefaultDatabasePort
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s",
		t.User, url.QueryEscape(t.Password), t.Host, port, t.Name), nil
}

// AgentDescriptor names the agent being created. It is passed through
// untouched to the final workflow report.
type AgentDescriptor struct {
	Name        string `json:"name,omitempty" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// GeoReference describes where location data lives in the customer database.
// The geolocation stage runs iff FactTable is set; every other field is an
// optional passthrough to the migrator.
type GeoReference struct {
	FactTable string `json:"fact_table,omitempty" yaml:"fact_table"`

	ProvinceColumn    string `json:"province_column,omitempty" yaml:"province_column"`
	CityColumn        string `json:"city_column,omitempty" yaml:"city_column"`
	DistrictColumn    string `json:"district_column,omitempty" yaml:"district_column"`
	SubdistrictColumn string `json:"subdistrict_column,omitempty" yaml:"subdistrict_column"`

	Province    string `json:"province,omitempty" yaml:"province"`
	City        string `json:"city,omitempty" yaml:"city"`
	District    string `json:"district,omitempty" yaml:"district"`
	Subdistrict string `json:"subdistrict,omitempty" yaml:"subdistrict"`
}

// Active reports whether the geolocation stage should run.
func (g GeoReference) Active() bool {
	return g.FactTable != ""
}

// Request is the validated unit of provisioning work. It is constructed once
// at startup, validated once, and then owned exclusively by the orchestrator
// for the duration of a single run.
type Request struct {
	ProcessType ProcessType `json:"process_type"`
	// ProcessID correlates this run with a step of a larger remote workflow.
	// When empty the run is standalone and no reports are sent.
	ProcessID string `json:"process_id,omitempty"`
	// StepOrder is incremented by exactly 1 immediately before each report.
	StepOrder int    `json:"step_order"`
	APIKey    string `json:"api_key,omitempty"`
	AuthToken string `json:"-"`

	Database DatabaseTarget  `json:"database"`
	Agent    AgentDescriptor `json:"agent,omitempty"`
	Geo      GeoReference    `json:"geolocation,omitempty"`

	connectionURI string
}

func requestStructLevel(sl validator.StructLevel) {
	req := sl.Current().Interface().(Request)
	if req.ProcessType != ProcessCreateAgent && req.APIKey == "" {
		sl.ReportError(req.APIKey, "APIKey", "api_key", "required_for_process_type", "")
	}
}

// Validate checks the request against the construction rules and resolves the
// database target. It is deterministic and side-effect free beyond caching
// the resolved connection URI.
func (r *Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		if _, ok := err.(validator.ValidationErrors); !ok {
			return fmt.Errorf("validate request: %w", err)
		}
		return configErrorf("invalid request: %v", err)
	}
	uri, err := r.Database.Resolve()
	if err != nil {
		return err
	}
	r.connectionURI = uri
	return nil
}

// ConnectionURI returns the resolved database connection string. It is empty
// until Validate has succeeded.
func (r *Request) ConnectionURI() string {
	return r.connectionURI
}

// InWorkflow reports whether this run is one step of a remote workflow.
func (r *Request) InWorkflow() bool {
	return r.ProcessID != ""
}
