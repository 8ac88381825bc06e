package model

// Specialty is a code from the national specialty catalog.
type Specialty string

const (
	SpecialtyCardiology       Specialty = "CAR"
	SpecialtyDermatology      Specialty = "DER"
	SpecialtyEndocrinology    Specialty = "END"
	SpecialtyGeneralPractice  Specialty = "GEN"
	SpecialtyGynecology       Specialty = "GYN"
	SpecialtyNeurology        Specialty = "NEU"
	SpecialtyOncology         Specialty = "ONC"
	SpecialtyPediatrics       Specialty = "PED"
	SpecialtyPsychiatry       Specialty = "PSY"
	SpecialtyRadiology        Specialty = "RAD"
	SpecialtyTraumatology     Specialty = "TRA"
	SpecialtyOphthalmology    Specialty = "OPH"
	SpecialtyOtorhinolaryngol Specialty = "ORL"
	SpecialtyUrology          Specialty = "URO"
)

var specialtyCatalog = map[Specialty]string{
	SpecialtyCardiology:       "Cardiology",
	SpecialtyDermatology:      "Dermatology",
	SpecialtyEndocrinology:    "Endocrinology",
	SpecialtyGeneralPractice:  "General Practice",
	SpecialtyGynecology:       "Gynecology",
	SpecialtyNeurology:        "Neurology",
	SpecialtyOncology:         "Oncology",
	SpecialtyPediatrics:       "Pediatrics",
	SpecialtyPsychiatry:       "Psychiatry",
	SpecialtyRadiology:        "Radiology",
	SpecialtyTraumatology:     "Traumatology",
	SpecialtyOphthalmology:    "Ophthalmology",
	SpecialtyOtorhinolaryngol: "Otorhinolaryngology",
	SpecialtyUrology:          "Urology",
}

// IsValid reports whether the code exists in the catalog.
func (s Specialty) IsValid() bool {
	_, ok := specialtyCatalog[s]
	return ok
}

// Description returns the human-readable catalog name.
func (s Specialty) Description() string {
	return specialtyCatalog[s]
}
