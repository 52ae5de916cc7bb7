package http_server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/medata/medrecords/pg"
)

type (
	ResponseMetadata struct {
		ResponseTimeMS int64 `json:"response_time_ms"`
		RecordCount    *int  `json:"record_count,omitempty"`
	}

	ResponseEnvelope struct {
		Data     any              `json:"data"`
		Metadata ResponseMetadata `json:"metadata"`
	}
)

func (s *HTTPServer) GetPatient(c *CustomContext) error {
	start := time.Now()
	patientID := c.Param("patient_id")

	rows, err := pg.QueryMaps(c.Request().Context(), s.pool,
		"SELECT * FROM medate_exam.patient_information WHERE patient_id = $1", patientID)
	if err != nil {
		return c.InternalError(err, "error querying patient")
	}
	if len(rows) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{
			"detail": fmt.Sprintf("Patient %s not found", patientID),
		})
	}

	return c.JSON(http.StatusOK, ResponseEnvelope{
		Data: rows[0],
		Metadata: ResponseMetadata{
			ResponseTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

func (s *HTTPServer) GetPatientLabResults(c *CustomContext) error {
	start := time.Now()
	patientID := c.Param("patient_id")
	ctx := c.Request().Context()

	patient, err := pg.QueryMaps(ctx, s.pool,
		"SELECT patient_id FROM medate_exam.patient_information WHERE patient_id = $1", patientID)
	if err != nil {
		return c.InternalError(err, "error checking patient")
	}
	if len(patient) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{
			"detail": fmt.Sprintf("Patient %s not found", patientID),
		})
	}

	query := `SELECT lr.*, lt.test_name
		FROM medate_exam.lab_results lr
		JOIN medate_exam.lab_tests lt ON lr.test_id = lt.test_id
		WHERE lt.patient_id = $1`
	args := []any{patientID}

	if fromDate := c.QueryParam("from_date"); fromDate != "" {
		args = append(args, fromDate)
		query += fmt.Sprintf(" AND lr.performed_date >= $%d", len(args))
	}
	if toDate := c.QueryParam("to_date"); toDate != "" {
		args = append(args, toDate)
		query += fmt.Sprintf(" AND lr.performed_date <= $%d", len(args))
	}
	query += " ORDER BY lr.performed_date, lr.performed_time"

	results, err := pg.QueryMaps(ctx, s.pool, query, args...)
	if err != nil {
		return c.InternalError(err, "error querying lab results")
	}
	if results == nil {
		results = []map[string]any{}
	}

	count := len(results)
	return c.JSON(http.StatusOK, ResponseEnvelope{
		Data: results,
		Metadata: ResponseMetadata{
			ResponseTimeMS: time.Since(start).Milliseconds(),
			RecordCount:    &count,
		},
	})
}
