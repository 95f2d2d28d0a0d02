package customer

// Customer is our view of a provider customer object
type Customer struct {
	// ID is the provider customer id
	ID string
	// Email is the billing email the customer was created with
	Email string
}
