package domain

import "time"

// Mission status constants (the subset the automation engine cares about)
const (
	MissionStatusScheduled = "SCHEDULED"
	MissionStatusCompleted = "COMPLETED"
	MissionStatusCanceled  = "CANCELED"
)

// Fine status constants
const (
	FineStatusPending = "PENDING"
	FineStatusPaid    = "PAID"
)

// Mission is a scheduled transport job. Owned by the CRUD side of the
// application; the engine only reads it to schedule reminders.
type Mission struct {
	ID           int64     `db:"id" json:"id"`
	ClientName   string    `db:"client_name" json:"client_name"`
	Origin       string    `db:"origin" json:"origin"`
	Destination  string    `db:"destination" json:"destination"`
	VehiclePlate string    `db:"vehicle_plate" json:"vehicle_plate"`
	DriverName   string    `db:"driver_name" json:"driver_name"`
	DriverEmail  string    `db:"driver_email" json:"driver_email"`
	ScheduledAt  time.Time `db:"scheduled_at" json:"scheduled_at"`
	Status       string    `db:"status" json:"status"`
}

// Fine is a traffic fine with a payment deadline.
type Fine struct {
	ID           int64     `db:"id" json:"id"`
	VehiclePlate string    `db:"vehicle_plate" json:"vehicle_plate"`
	Description  string    `db:"description" json:"description"`
	Amount       float64   `db:"amount" json:"amount"`
	DueDate      time.Time `db:"due_date" json:"due_date"`
	Status       string    `db:"status" json:"status"`
}
