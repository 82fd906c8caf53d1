package entity

// SourceStatus gates whether a source is refreshed and listed by default.
type SourceStatus int

const (
	SourceDisabled SourceStatus = 0
	SourceActive   SourceStatus = 1
)

// Valid reports whether s is one of the known statuses.
func (s SourceStatus) Valid() bool {
	return s == SourceDisabled || s == SourceActive
}

// HistoryFlag records whether older articles of a source can still be pulled.
type HistoryFlag int

const (
	HistoryUnknown   HistoryFlag = -1
	HistoryNone      HistoryFlag = 0
	HistoryAvailable HistoryFlag = 1
)

// Valid reports whether h is one of the known tri-state values.
func (h HistoryFlag) Valid() bool {
	return h >= HistoryUnknown && h <= HistoryAvailable
}

// Source is a tracked publisher whose articles are aggregated into feeds.
// LastSyncedAt and UpdatedAt are epoch seconds; LastSyncedAt == 0 means never synced.
type Source struct {
	ID            string
	Name          string
	CoverImageURL string
	Description   string
	Status        SourceStatus
	LastSyncedAt  int64
	UpdatedAt     int64
	HasHistory    HistoryFlag
}

// IsActive reports whether the source takes part in scheduled refreshes.
func (s *Source) IsActive() bool {
	return s.Status == SourceActive
}

// Validate checks the invariants every stored source must satisfy.
func (s *Source) Validate() error {
	if err := ValidateID("id", s.ID); err != nil {
		return err
	}
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if !s.Status.Valid() {
		return &ValidationError{Field: "status", Message: "must be 0 (disabled) or 1 (active)"}
	}
	if !s.HasHistory.Valid() {
		return &ValidationError{Field: "hasHistory", Message: "must be -1, 0 or 1"}
	}
	if s.CoverImageURL != "" {
		if err := ValidateURL("coverImageUrl", s.CoverImageURL); err != nil {
			return err
		}
	}
	return nil
}
