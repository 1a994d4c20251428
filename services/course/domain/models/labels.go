package models

// ClassLabels is the computed display information of one class.
type ClassLabels struct {
	ClassID        int64
	Suffix         string
	Label          string
	LabelWithTitle string
	ExternalID     string
	Credit         *float64
}
