package businessflow

// Identity is the authenticated caller, passed explicitly into every operation
type Identity struct {
	CustomerID uint
	Email      string
	Token      string
}
