package domain

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid entity request: " + e.Reason
}

type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

type AlreadyExistsError struct {
	UserID string
}

func (e *AlreadyExistsError) Error() string {
	return "user " + e.UserID + " already has an entity"
}
