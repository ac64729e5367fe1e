package domain

// ScoringInput is one element of the payload sent to the external scorer.
type ScoringInput struct {
	Date        string        `json:"date"`
	Age         float64       `json:"age"`
	DaysToVisit float64       `json:"days_to_visit"`
	TotalScore  int           `json:"totalScore"`
	Subscores   WireSubscores `json:"subscores"`
}

// WireSubscores is the subscore object in the scorer protocol. The recall section
// travels as memory_recall.
type WireSubscores struct {
	VisuospatialExec int `json:"visuospatialExec"`
	Naming           int `json:"naming"`
	Attention        int `json:"attention"`
	Language         int `json:"language"`
	Abstraction      int `json:"abstraction"`
	MemoryRecall     int `json:"memory_recall"`
	Orientation      int `json:"orientation"`
}

// ToWire converts stored subscores into their protocol form.
func (s Subscores) ToWire() WireSubscores {
	return WireSubscores{
		VisuospatialExec: s.VisuospatialExec,
		Naming:           s.Naming,
		Attention:        s.Attention,
		Language:         s.Language,
		Abstraction:      s.Abstraction,
		MemoryRecall:     s.Recall,
		Orientation:      s.Orientation,
	}
}

// PredictionRecord is one element of the scorer's output, aligned with the
// chronologically sorted input.
type PredictionRecord struct {
	Date              string   `json:"date"`
	CurrentRating     float64  `json:"current_cdr"`
	CurrentConfidence float64  `json:"current_confidence"`
	FutureRating      *float64 `json:"future_cdr"`
	FutureConfidence  *float64 `json:"future_confidence"`
	DeclineRate       int      `json:"decline_rate"`
	VisitNumber       int      `json:"visit_number"`
}
