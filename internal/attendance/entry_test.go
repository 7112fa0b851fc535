package attendance

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sunnyio/attendanceManager/internal/apperror"
)

func TestNewEntry_Valid(t *testing.T) {
	entry, err := NewEntry(1, "2024-01-02", "Present", "Eng")
	require.NoError(t, err)

	assert.Equal(t, int64(1), entry.EmployeeID)
	assert.Equal(t, "2024-01-02", entry.Date.String())
	assert.Equal(t, StatusPresent, entry.Status)
	assert.Equal(t, "Eng", entry.Department)
	assert.NoError(t, entry.Validate())
}

func TestNewEntry_ReportsEveryBadField(t *testing.T) {
	_, err := NewEntry(0, "2024-13-01", "Late", "")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	fields := map[string]bool{}
	for _, f := range apperror.FieldsOf(err) {
		fields[f.Field] = true
	}
	assert.Equal(t, map[string]bool{
		"employee_id": true,
		"date":        true,
		"status":      true,
		"department":  true,
	}, fields)
}

func TestNewEntry_Date(t *testing.T) {
	tests := []struct {
		date  string
		valid bool
	}{
		{"2024-01-02", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-02-30", false},
		{"2024-2-3", false},
		{"02-01-2024", false},
		{"2024-01-02T00:00:00Z", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			_, err := NewEntry(1, tt.date, "WFH", "Eng")
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			fields := apperror.FieldsOf(err)
			require.Len(t, fields, 1)
			assert.Equal(t, "date", fields[0].Field)
		})
	}
}

func TestNewEntry_Status(t *testing.T) {
	for _, status := range []string{"Present", "Absent", "WFH"} {
		_, err := NewEntry(1, "2024-01-02", status, "Eng")
		assert.NoError(t, err, status)
	}
	for _, status := range []string{"present", "Late", "", "wfh"} {
		_, err := NewEntry(1, "2024-01-02", status, "Eng")
		assert.Error(t, err, status)
	}
}

func TestNewEntry_DepartmentLength(t *testing.T) {
	_, err := NewEntry(1, "2024-01-02", "Present", strings.Repeat("a", MaxDepartmentLength))
	assert.NoError(t, err)

	_, err = NewEntry(1, "2024-01-02", "Present", strings.Repeat("é", MaxDepartmentLength))
	assert.NoError(t, err, "length is counted in characters")

	_, err = NewEntry(1, "2024-01-02", "Present", strings.Repeat("a", MaxDepartmentLength+1))
	require.Error(t, err)
	assert.Equal(t, "department", apperror.FieldsOf(err)[0].Field)
}

func TestEntry_ValidateZeroValue(t *testing.T) {
	err := Entry{}.Validate()
	require.Error(t, err)
	assert.Len(t, apperror.FieldsOf(err), 4)
}

func TestDate_Scan(t *testing.T) {
	var d Date

	require.NoError(t, d.Scan(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-02", d.String())

	require.NoError(t, d.Scan("2024-03-04"))
	assert.Equal(t, "2024-03-04", d.String())

	require.NoError(t, d.Scan([]byte("2024-05-06T00:00:00Z")))
	assert.Equal(t, "2024-05-06", d.String())

	assert.Error(t, d.Scan(42))
	assert.Error(t, d.Scan("not a date"))
}

func TestDate_JSON(t *testing.T) {
	d, err := ParseDate("2024-01-02")
	require.NoError(t, err)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-01-02"`, string(data))

	var back Date
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, d.Equal(back.Time))

	assert.Error(t, json.Unmarshal([]byte(`"2024-1-2"`), &back))
}

func TestTrends_JSONShape(t *testing.T) {
	trends := Trends{}
	trends.add(1, "Eng", StatusPresent, 2)
	trends.add(1, "Eng", StatusAbsent, 1)

	data, err := json.Marshal(trends)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"department":"Eng","attendance":{"Present":2,"Absent":1}}}`, string(data))
}
