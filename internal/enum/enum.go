package enum

// ── Group A: Order sub-states (validated by the upstream API) ──

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

const (
	DeliveryStatusNotShipped = "NOT_SHIPPED"
	DeliveryStatusReady      = "READY"
	DeliveryStatusShipped    = "SHIPPED"
	DeliveryStatusCompleted  = "COMPLETED"
)

const (
	SerialStatusNone     = "none"
	SerialStatusPartial  = "partial"
	SerialStatusComplete = "complete"
)

// ── Group B: Labels ──

const (
	CustomerTypeOnline  = "online"
	CustomerTypeOffline = "offline"
)

const (
	ChannelOnline  = "online"
	ChannelOffline = "offline"
)

const (
	PaymentTypeCOD     = "cod"
	PaymentTypePrepaid = "prepaid"
)

// IsDeliveryStatus reports whether s is one of the four delivery states.
func IsDeliveryStatus(s string) bool {
	switch s {
	case DeliveryStatusNotShipped, DeliveryStatusReady,
		DeliveryStatusShipped, DeliveryStatusCompleted:
		return true
	}
	return false
}

// IsSerialStatus reports whether s is a known serial assignment state.
func IsSerialStatus(s string) bool {
	switch s {
	case SerialStatusNone, SerialStatusPartial, SerialStatusComplete:
		return true
	}
	return false
}

// IsCustomerType reports whether s is online or offline.
func IsCustomerType(s string) bool {
	return s == CustomerTypeOnline || s == CustomerTypeOffline
}

// FlipPayment returns the opposite payment status. Anything that is not
// "paid" is treated as pending, matching the upstream toggle.
func FlipPayment(s string) string {
	if s == PaymentStatusPaid {
		return PaymentStatusPending
	}
	return PaymentStatusPaid
}
