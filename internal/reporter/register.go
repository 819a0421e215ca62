package reporter

import (
	"yqhp/matmul-engine/internal/reporter/console"
	"yqhp/matmul-engine/internal/reporter/file"
	"yqhp/matmul-engine/internal/reporter/sqlstore"
)

// RegisterBuiltinReporters registers all built-in reporters with the registry.
func RegisterBuiltinReporters(registry *Registry) error {
	builtins := map[ReporterType]ReporterFactory{
		ReporterTypeConsole: func(config map[string]any) (Reporter, error) {
			return console.New(nil), nil
		},
		ReporterTypeCSV: func(config map[string]any) (Reporter, error) {
			return file.NewCSVReporter(file.CSVConfigFromMap(config)), nil
		},
		ReporterTypeJSON: func(config map[string]any) (Reporter, error) {
			return file.NewJSONReporter(file.JSONConfigFromMap(config)), nil
		},
		ReporterTypeSQL: func(config map[string]any) (Reporter, error) {
			return sqlstore.New(sqlstore.ConfigFromMap(config)), nil
		},
	}
	for t, factory := range builtins {
		if err := registry.Register(t, factory); err != nil {
			return err
		}
	}
	return nil
}

// DefaultReporters is the output used when none is configured: the CSV
// results file and a console table.
func DefaultReporters() []ReporterConfig {
	return []ReporterConfig{
		{Type: ReporterTypeCSV, Enabled: true, Config: map[string]any{"file_path": file.DefaultCSVPath}},
		{Type: ReporterTypeConsole, Enabled: true},
	}
}
