package model

// Clinic is a provider node registered with the exchange hub. APIKey is the
// credential the hub presents when fetching documents from the clinic's
// storage node.
type Clinic struct {
	Base
	ClinicID string `db:"clinic_id" json:"clinic_id"`
	Name     string `db:"name" json:"name"`
	Location string `db:"location" json:"location"`
	Status   string `db:"status" json:"status"`
	Endpoint string `db:"endpoint" json:"endpoint"`
	APIKey   string `db:"api_key" json:"-"`
}
