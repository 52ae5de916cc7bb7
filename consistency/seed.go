package consistency

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/medata/medrecords/tables"
	"github.com/medata/medrecords/utils"
)

// Seed is the synthetic row set for one verification run. Every primary
// key starts with KeyPrefix so cleanup can delete by prefix.
type Seed struct {
	KeyPrefix string

	Patients   []tables.PatientInformation
	LabTests   []tables.LabTest
	LabResults []tables.LabResult
	Admissions []tables.Admission
}

// NewKeyPrefix returns a fresh synthetic key prefix, e.g. "CHK_x8Rk2p1q_".
func NewKeyPrefix() string {
	return "CHK_" + gonanoid.MustGenerate("abcdefghikmonpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ0123456789", 8) + "_"
}

// DefaultSeed builds the canonical patient → lab test → lab result chain
// plus one admission, all keyed under prefix.
func DefaultSeed(prefix string) Seed {
	now := time.Now().UTC()
	today := now.Format("2006-01-02")
	clock := now.Format("15:04:05")

	return Seed{
		KeyPrefix: prefix,
		Patients: []tables.PatientInformation{{
			PatientID:         prefix + "PAT001",
			FirstName:         "John",
			LastName:          "Doe",
			DateOfBirth:       "1990-01-01",
			PrimaryPhysician:  utils.Ptr("Dr. House"),
			InsuranceProvider: utils.Ptr("Medicare"),
			BloodType:         utils.Ptr("A+"),
			Allergies:         utils.Ptr("None"),
		}},
		LabTests: []tables.LabTest{{
			TestID:            prefix + "TST001",
			PatientID:         prefix + "PAT001",
			TestName:          "Blood Test",
			OrderDate:         today,
			OrderTime:         clock,
			OrderingPhysician: utils.Ptr("Dr. House"),
		}},
		LabResults: []tables.LabResult{
			{
				ResultID:           prefix + "RES001",
				TestID:             prefix + "TST001",
				ResultValue:        utils.Ptr(85.5),
				ResultUnit:         utils.Ptr("mg/dL"),
				ReferenceRange:     utils.Ptr("70-100"),
				ResultStatus:       utils.Ptr("Final"),
				PerformedDate:      today,
				PerformedTime:      clock,
				ReviewingPhysician: utils.Ptr("Dr. Smith"),
			},
			{
				// NULL-heavy row, exercises null round-tripping
				ResultID:      prefix + "RES002",
				TestID:        prefix + "TST001",
				ResultStatus:  utils.Ptr("Pending"),
				PerformedDate: today,
				PerformedTime: clock,
			},
		},
		Admissions: []tables.Admission{{
			HospitalizationCaseNumber: prefix + "ADM001",
			PatientID:                 prefix + "PAT001",
			AdmissionDate:             today,
			AdmissionTime:             clock,
			Department:                utils.Ptr("Emergency"),
			RoomNumber:                utils.Ptr("E101"),
		}},
	}
}
