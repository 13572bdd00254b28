package app

// Status es el resultado terminal por URL de la pasada exacta.
type Status int

const (
	StatusStored Status = iota
	StatusDuplicate
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStored:
		return "stored"
	case StatusDuplicate:
		return "duplicate"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome se produce exactamente una vez por URL que entra a la
// pasada exacta.
type Outcome struct {
	URL      string `json:"url"`
	Status   Status `json:"status"`
	Artifact string `json:"artifact,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

// Summary agrega los contadores de la ejecución completa.
type Summary struct {
	Input       int       `json:"input"`
	Malformed   int       `json:"malformed"`
	Collapsed   int       `json:"collapsed"`
	Unreachable int       `json:"unreachable"`
	Stored      int       `json:"stored"`
	Duplicates  int       `json:"duplicates"`
	Failed      int       `json:"failed"`
	DurationMS  int64     `json:"duration_ms"`
	Outcomes    []Outcome `json:"-"`
}

func (s *Summary) record(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusStored:
		s.Stored++
	case StatusDuplicate:
		s.Duplicates++
	case StatusFailed:
		s.Failed++
	}
}

// FailedOutcomes returns the failed subset, for operators who ask for
// the list of unfetchable URLs with reasons.
func (s *Summary) FailedOutcomes() []Outcome {
	var failed []Outcome
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}
