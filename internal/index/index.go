package index

// ChartIndex defines the interface for chart snapshot operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type ChartIndex interface {
	UpsertChart(c ChartRow, deps []string) error
	DeleteChart(slug string) error
	GetChecksum(slug string) (string, error)
	GetChart(slug string) (*ChartRow, error)
	AllCharts() ([]ChartRow, error)
	AllChecksums() (map[string]string, error)
	Dependents(path string) ([]string, error)
	Close() error
}

// Verify *DB satisfies ChartIndex at compile time.
var _ ChartIndex = (*DB)(nil)
