package backend

import "fmt"

// Barber is a stylist clients can book with.
type Barber struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

// Appointment is the backend's wire representation of a booking.
type Appointment struct {
	ID           string `json:"id"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	Status       string `json:"status"`
	ServiceType  int    `json:"serviceType"`
	UserFullName string `json:"userFullName"`
	Notes        string `json:"notes"`
}

// AppointmentDetails extends Appointment with client contact fields; admins
// use it before approving or rejecting.
type AppointmentDetails struct {
	Appointment
	PhoneNumber string `json:"phoneNumber"`
	BarberID    string `json:"barberId"`
	BarberName  string `json:"barberName"`
}

// WorkingHour is one weekly window row. Day follows the backend convention of
// 0 = Sunday through 6 = Saturday.
type WorkingHour struct {
	Day   int    `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// BusySlot is an admin-entered block of time.
type BusySlot struct {
	ID        string `json:"id"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Reason    string `json:"reason"`
}

// AvailableSlot is one per-slot availability flag from the backend.
type AvailableSlot struct {
	Time        string `json:"time"`
	IsAvailable bool   `json:"isAvailable"`
}

// CreateAppointmentRequest books a slot for the authenticated customer.
type CreateAppointmentRequest struct {
	BarberID    string `json:"barberId"`
	StartTime   string `json:"startTime"`
	ServiceType int    `json:"serviceType"`
	Notes       string `json:"notes,omitempty"`
}

// ManualAppointmentRequest books a slot on behalf of a walk-in client.
type ManualAppointmentRequest struct {
	BarberID    string `json:"barberId"`
	StartTime   string `json:"startTime"`
	ServiceType int    `json:"serviceType"`
	Notes       string `json:"notes,omitempty"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
}

// CreateBusySlotRequest blocks out a time range for a barber.
type CreateBusySlotRequest struct {
	BarberID  string `json:"barberId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Reason    string `json:"reason,omitempty"`
}

// Service types offered by the shop.
const (
	ServiceHaircut      = 1
	ServiceBeard        = 2
	ServiceHaircutBeard = 3
)

// ServiceDuration maps a service type to its length in minutes.
func ServiceDuration(serviceType int) (int, error) {
	switch serviceType {
	case ServiceHaircut:
		return 30, nil
	case ServiceBeard:
		return 15, nil
	case ServiceHaircutBeard:
		return 45, nil
	default:
		return 0, fmt.Errorf("unknown service type %d", serviceType)
	}
}

// ServiceName returns the display name of a service type.
func ServiceName(serviceType int) string {
	switch serviceType {
	case ServiceHaircut:
		return "Haircut"
	case ServiceBeard:
		return "Beard trim"
	case ServiceHaircutBeard:
		return "Haircut + beard"
	default:
		return fmt.Sprintf("Service %d", serviceType)
	}
}
