package types

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// PregenRequest holds the trigger parameters after defaults and clamping.
type PregenRequest struct {
	Max      int
	Language string
}
