package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Slate  Slate  `yaml:"slate"`
	Campus Campus `yaml:"campus"`
	Sync   Sync   `yaml:"sync"`
	Server Server `yaml:"server"`
}

// Endpoint is one authenticated CRM web-service endpoint.
type Endpoint struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Slate struct {
	QueryApps        Endpoint      `yaml:"queryApps"`
	ScheduledActions Endpoint      `yaml:"scheduledActions"`
	UploadActive     UploadActive  `yaml:"uploadActive"`
	UploadPassive    UploadPassive `yaml:"uploadPassive"`
	UploadSchools    Endpoint      `yaml:"uploadSchools"`
	UploadChecklist  Endpoint      `yaml:"uploadChecklist"`
}

// UploadActive configures the change-detected writeback channel. Only fields
// listed here carry "compare_" shadows.
type UploadActive struct {
	Endpoint     `yaml:",inline"`
	FieldsString []string `yaml:"fieldsString"`
	FieldsBool   []string `yaml:"fieldsBool"`
	FieldsInt    []string `yaml:"fieldsInt"`
}

// UploadPassive configures the unconditional writeback channel, republished
// for every active record each run.
type UploadPassive struct {
	Endpoint `yaml:",inline"`
	Fields   []string `yaml:"fields"`
}

type Campus struct {
	APIURL                    string        `yaml:"apiUrl"`
	APIUsername               string        `yaml:"apiUsername"`
	APIPassword               string        `yaml:"apiPassword"`
	AppFormSettingID          int           `yaml:"appFormSettingId"`
	PostgresDsn               string        `yaml:"postgresDsn"`
	MappingFileLocation       string        `yaml:"mappingFileLocation"`
	ReadmitCode               string        `yaml:"readmitCode"`
	CampusEmailType           string        `yaml:"campusEmailType"`
	UpdateAcademicKey         bool          `yaml:"updateAcademicKey"`
	ValidateScholarshipLevels bool          `yaml:"validateScholarshipLevels"`
	Notes                     []Note        `yaml:"notes"`
	UserDefinedFields         []UserDefined `yaml:"userDefinedFields"`
	AutoExtendMappings        AutoExtend    `yaml:"autoExtendMappings"`
	DiagnosticLog             DiagnosticLog `yaml:"diagnosticLog"`
}

// Note routes one CRM field into the target system's note store.
type Note struct {
	SlateField string `yaml:"slateField"`
	Office     string `yaml:"office"`
	NoteType   string `yaml:"noteType"`
}

// UserDefined routes one CRM field into a target-system user-defined field.
type UserDefined struct {
	SlateField  string `yaml:"slateField"`
	CampusField string `yaml:"campusField"`
}

// AutoExtend controls mapping-document auto-extension against the target
// system's term and program-of-study catalogs.
type AutoExtend struct {
	Enabled     bool `yaml:"enabled"`
	MinimumYear int  `yaml:"minimumYear"`
}

// DiagnosticLog configures the best-effort per-classification log rows.
type DiagnosticLog struct {
	Enabled bool   `yaml:"enabled"`
	Table   string `yaml:"table"`
}

type Sync struct {
	ErrorPolicy      string           `yaml:"errorPolicy"` // continue, abort
	Defaults         Defaults         `yaml:"defaults"`
	ScheduledActions ScheduledActions `yaml:"scheduledActions"`
	FAChecklist      FAChecklist      `yaml:"faChecklist"`
}

type Defaults struct {
	AddressCountry string `yaml:"addressCountry"`
	PhoneCountry   string `yaml:"phoneCountry"`
	PhoneType      int64  `yaml:"phoneType"`
}

type ScheduledActions struct {
	Enabled               bool     `yaml:"enabled"`
	AdmissionsActionCodes []string `yaml:"admissionsActionCodes"`
	AutolearnActionCodes  bool     `yaml:"autolearnActionCodes"`
}

type FAChecklist struct {
	Enabled bool `yaml:"enabled"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	LogMode       string `yaml:"logMode"` // prod, dev
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Sync.ErrorPolicy == "" {
		config.Sync.ErrorPolicy = "continue"
	}
	if config.Sync.ErrorPolicy != "continue" && config.Sync.ErrorPolicy != "abort" {
		return Config{}, fmt.Errorf("invalid errorPolicy %q", config.Sync.ErrorPolicy)
	}

	return config, nil
}

// Save rewrites the config file atomically. Used to persist learned
// scheduled-action codes.
func Save(path string, config Config) error {
	out, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
