package cli

// Flags holds all command-line flag values
type Flags struct {
	// General flags
	CfgFile     string
	DBPath      string
	OutputDir   string
	ProjectName string
	ListModels  bool
	Archive     bool

	// Project lifecycle flags
	ProjectID     string
	ListProjects  bool
	ShowStatus    bool
	PauseProject  bool
	ResetProject  bool
	DeleteProject bool

	// Translation flags
	SourceLang         string
	TargetLangs        []string
	ChunkSize          int
	MaxRetries         int
	Style              string
	PreserveFormatting bool
	ContextAware       bool
	AssessQuality      bool

	// Provider flags
	Provider          string
	Model             string
	BaseURL           string
	RequestsPerMinute int

	// Export flags
	ExportFormat string
	SkipExport   bool
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		SourceLang:         "auto",
		ChunkSize:          1000,
		MaxRetries:         3,
		Style:              "formal",
		PreserveFormatting: true,
		Provider:           "openai",
		RequestsPerMinute:  20,
		ExportFormat:       "txt",
	}
}
