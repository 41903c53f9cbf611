package status

// Status is a custom type to represent the state of the printer connection
type Status int

const (
	// Disconnected means there is no printer attached to the service
	Disconnected Status = 0

	// Connecting means a printer is being discovered and connected
	Connecting Status = 1

	// Connected means a printer is attached and ready for a new job
	Connected Status = 2

	// Printing means a receipt is being sent to the printer
	Printing Status = 3
)

var (
	statusText = map[Status]string{
		Disconnected: "Printer is disconnected",
		Connecting:   "Connecting to printer",
		Connected:    "Printer is connected",
		Printing:     "Printing receipt",
	}
)

// Text returns a text for a status. It returns the empty
// string if the status is unknown.
func Text(status Status) string {
	return statusText[status]
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return Text(s)
}
