// Package tables models the four medical record tables as fixed-schema
// record types. Nullable columns are pointer fields, dates and times travel
// as "2006-01-02" / "15:04:05" strings so relational and columnar reads
// compare directly.
package tables

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/medata/medrecords/dataset"
)

const schema = "medate_exam"

type (
	PatientInformation struct {
		PatientID         string
		FirstName         string
		LastName          string
		DateOfBirth       string
		PrimaryPhysician  *string
		InsuranceProvider *string
		BloodType         *string
		Allergies         *string
	}

	LabTest struct {
		TestID            string
		PatientID         string
		TestName          string
		OrderDate         string
		OrderTime         string
		OrderingPhysician *string
	}

	LabResult struct {
		ResultID           string
		TestID             string
		ResultValue        *float64
		ResultUnit         *string
		ReferenceRange     *string
		ResultStatus       *string
		PerformedDate      string
		PerformedTime      string
		ReviewingPhysician *string
	}

	Admission struct {
		HospitalizationCaseNumber string
		PatientID                 string
		AdmissionDate             string
		AdmissionTime             string
		ReleaseDate               *string
		ReleaseTime               *string
		Department                *string
		RoomNumber                *string
	}
)

// cell flattens a nullable pointer field into a dataset cell.
func cell[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Row converts the record to a dataset row in the table's column order.
func (p PatientInformation) Row() dataset.Row {
	return dataset.Row{p.PatientID, p.FirstName, p.LastName, p.DateOfBirth,
		cell(p.PrimaryPhysician), cell(p.InsuranceProvider), cell(p.BloodType), cell(p.Allergies)}
}

func (t LabTest) Row() dataset.Row {
	return dataset.Row{t.TestID, t.PatientID, t.TestName, t.OrderDate, t.OrderTime,
		cell(t.OrderingPhysician)}
}

func (r LabResult) Row() dataset.Row {
	return dataset.Row{r.ResultID, r.TestID, cell(r.ResultValue), cell(r.ResultUnit),
		cell(r.ReferenceRange), cell(r.ResultStatus), r.PerformedDate, r.PerformedTime,
		cell(r.ReviewingPhysician)}
}

func (a Admission) Row() dataset.Row {
	return dataset.Row{a.HospitalizationCaseNumber, a.PatientID, a.AdmissionDate,
		a.AdmissionTime, cell(a.ReleaseDate), cell(a.ReleaseTime), cell(a.Department),
		cell(a.RoomNumber)}
}

func (p PatientInformation) Insert(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.patient_information
		(patient_id, first_name, last_name, date_of_birth, primary_physician, insurance_provider, blood_type, allergies)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, schema), p.PatientID, p.FirstName, p.LastName, p.DateOfBirth, p.PrimaryPhysician, p.InsuranceProvider, p.BloodType, p.Allergies)
	if err != nil {
		return fmt.Errorf("error inserting patient %s: %w", p.PatientID, err)
	}
	return nil
}

func (t LabTest) Insert(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.lab_tests
		(test_id, patient_id, test_name, order_date, order_time, ordering_physician)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, schema), t.TestID, t.PatientID, t.TestName, t.OrderDate, t.OrderTime, t.OrderingPhysician)
	if err != nil {
		return fmt.Errorf("error inserting lab test %s: %w", t.TestID, err)
	}
	return nil
}

func (r LabResult) Insert(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.lab_results
		(result_id, test_id, result_value, result_unit, reference_range, result_status, performed_date, performed_time, reviewing_physician)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, schema), r.ResultID, r.TestID, r.ResultValue, r.ResultUnit, r.ReferenceRange, r.ResultStatus, r.PerformedDate, r.PerformedTime, r.ReviewingPhysician)
	if err != nil {
		return fmt.Errorf("error inserting lab result %s: %w", r.ResultID, err)
	}
	return nil
}

func (a Admission) Insert(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.admissions
		(hospitalization_case_number, patient_id, admission_date, admission_time, release_date, release_time, department, room_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, schema), a.HospitalizationCaseNumber, a.PatientID, a.AdmissionDate, a.AdmissionTime, a.ReleaseDate, a.ReleaseTime, a.Department, a.RoomNumber)
	if err != nil {
		return fmt.Errorf("error inserting admission %s: %w", a.HospitalizationCaseNumber, err)
	}
	return nil
}

// UpdateLabResultValue changes one field of a lab result, used to confirm an
// update becomes visible in the next export.
func UpdateLabResultValue(ctx context.Context, tx pgx.Tx, resultID string, value float64, reviewingPhysician string) error {
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s.lab_results
		SET result_value = $2, reviewing_physician = $3
		WHERE result_id = $1
	`, schema), resultID, value, reviewingPhysician)
	if err != nil {
		return fmt.Errorf("error updating lab result %s: %w", resultID, err)
	}
	return nil
}

// DeleteLabResult removes one lab result row.
func DeleteLabResult(ctx context.Context, tx pgx.Tx, resultID string) error {
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s.lab_results WHERE result_id = $1
	`, schema), resultID)
	if err != nil {
		return fmt.Errorf("error deleting lab result %s: %w", resultID, err)
	}
	return nil
}
