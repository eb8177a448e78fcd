package polar

// Transaction is the handle returned when a physical-information
// transaction is opened. The AccessLink API answers 201 with this
// document, or 204 when there is no new data to transfer.
type Transaction struct {
	TransactionID int64  `json:"transaction-id"`
	ResourceURI   string `json:"resource-uri"`
}

// TransactionResources lists the absolute resource URIs contained in an
// open transaction.
type TransactionResources struct {
	PhysicalInformations []string `json:"physical-informations"`
}

// registerRequest is the body of the user registration call.
type registerRequest struct {
	MemberID string `json:"member-id"`
}

// RegisteredUser is the response to a successful user registration.
type RegisteredUser struct {
	PolarUserID int64  `json:"polar-user-id"`
	MemberID    string `json:"member-id"`
}
