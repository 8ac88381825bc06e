package model

// Document is the registry's read model of a clinical document: where its
// bytes live and the digest recorded at registration time. The bytes
// themselves stay on the owning clinic's storage node.
type Document struct {
	Base
	PatientID   string `db:"patient_id" json:"patient_id"`
	ClinicID    string `db:"clinic_id" json:"clinic_id"`
	Title       string `db:"title" json:"title"`
	ContentType string `db:"content_type" json:"content_type"`
	Locator     string `db:"locator" json:"locator"`
	SHA256      string `db:"sha256" json:"sha256"`
	SizeBytes   int64  `db:"size_bytes" json:"size_bytes"`
}
