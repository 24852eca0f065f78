package domain

// PatientRecord is one rabies post-exposure treatment registration.
type PatientRecord struct {
	ID         string `json:"id"`
	FiscalYear string `json:"fiscalYear"`
	RegMonth   string `json:"regMonth"`
	RegDate    string `json:"regDate"`
	Name       string `json:"name"`
	Sex        string `json:"sex"`
	Age        string `json:"age"`
	AnimalType string `json:"animalType"`
}
