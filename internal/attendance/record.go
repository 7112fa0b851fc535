package attendance

// Record is a stored attendance row.
type Record struct {
	ID         int64  `json:"id"`
	EmployeeID int64  `json:"employee_id"`
	Date       Date   `json:"date"`
	Status     Status `json:"status"`
	Department string `json:"department"`
}

// EmployeeTrend holds per-status counts for one employee.
type EmployeeTrend struct {
	Department string           `json:"department"`
	Attendance map[Status]int64 `json:"attendance"`
}

// Trends maps employee id to that employee's status counts.
type Trends map[int64]EmployeeTrend

// add folds one grouped row into the aggregate. Rows arrive ordered by
// department, so an employee's reported department is the first in that order.
func (t Trends) add(employeeID int64, department string, status Status, count int64) {
	trend, ok := t[employeeID]
	if !ok {
		trend = EmployeeTrend{
			Department: department,
			Attendance: make(map[Status]int64),
		}
		t[employeeID] = trend
	}
	trend.Attendance[status] += count
}

// Ack acknowledges a successful write.
type Ack struct {
	Message string `json:"message"`
}
